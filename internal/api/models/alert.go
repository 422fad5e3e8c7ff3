package models

// Alert is a groundwater alert raised for a station.
type Alert struct {
	ID           string    `json:"id"`
	StationID    string    `json:"stationId"`
	Type         string    `json:"type"`
	Severity     string    `json:"severity"`
	Message      string    `json:"message"`
	WaterLevel   float64   `json:"waterLevel"`
	TriggeredAt  Timestamp `json:"triggeredAt"`
	Acknowledged bool      `json:"acknowledged"`
}

// PagedAlerts represents a list of alerts.
type PagedAlerts struct {
	Items []Alert           `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
