package models

// Enums lists the enum values used by the API.
type Enums struct {
	Statuses        []string   `json:"statuses"`
	Confidence      []string   `json:"confidence"`
	AlertTypes      []string   `json:"alertTypes"`
	AlertSeverities []string   `json:"alertSeverities"`
	Thresholds      Thresholds `json:"thresholds"`
	Unit            string     `json:"unit"`
}

// Thresholds are the level and confidence cut-offs the API applies.
type Thresholds struct {
	SemiCriticalLevelM       float64 `json:"semiCriticalLevelM"`
	CriticalLevelM           float64 `json:"criticalLevelM"`
	RapidDeclinePercent      float64 `json:"rapidDeclinePercent"`
	HighConfidenceKm         float64 `json:"highConfidenceKm"`
	HighConfidenceStations   int     `json:"highConfidenceStations"`
	MediumConfidenceKm       float64 `json:"mediumConfidenceKm"`
	MediumConfidenceStations int     `json:"mediumConfidenceStations"`
}
