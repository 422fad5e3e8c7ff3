package models

// Station is a DWLR station with its latest reading.
type Station struct {
	StationID  string     `json:"stationId"`
	Name       string     `json:"name"`
	District   string     `json:"district,omitempty"`
	State      string     `json:"state,omitempty"`
	Point      *Point     `json:"point,omitempty"`
	Latest     *Reading   `json:"latest,omitempty"`
	Status     string     `json:"status,omitempty"`
	DistanceKm *float64   `json:"distanceKm,omitempty"`
	UpdatedAt  *Timestamp `json:"updatedAt,omitempty"`

	// HealthScore and Recharge are only set on single-station lookups.
	HealthScore *int      `json:"healthScore,omitempty"`
	Recharge    *Recharge `json:"recharge,omitempty"`
}

// Recharge is a station's groundwater recharge by the water table
// fluctuation method.
type Recharge struct {
	SpecificYield float64         `json:"specificYield"`
	TotalMm       float64         `json:"totalMm"`
	Readings      int             `json:"readings"`
	Events        []RechargeEvent `json:"events"`
}

// RechargeEvent is one rise of the water table.
type RechargeEvent struct {
	Date     string  `json:"date"`
	RiseM    float64 `json:"riseM"`
	AmountMm float64 `json:"amountMm"`
}

// AreaSummary aggregates the stations near a point.
type AreaSummary struct {
	Point              Point     `json:"point"`
	StationCount       int       `json:"stationCount"`
	MeanLevel          float64   `json:"meanLevel"`
	Unit               string    `json:"unit"`
	RechargingStations int       `json:"rechargingStations"`
	CriticalStations   int       `json:"criticalStations"`
	Stations           []Station `json:"stations"`
}

// District is the latest refreshed summary of a district's estimates.
type District struct {
	District    string    `json:"district"`
	State       string    `json:"state"`
	Points      int       `json:"points"`
	MeanLevel   float64   `json:"meanLevel"`
	Unit        string    `json:"unit"`
	WorstStatus string    `json:"worstStatus"`
	ComputedAt  Timestamp `json:"computedAt"`
}

// Districts lists district summaries.
type Districts struct {
	Items []District `json:"items"`
}

// Reading is a single water level measurement.
type Reading struct {
	Level      float64   `json:"level"`
	Unit       string    `json:"unit"`
	MeasuredAt Timestamp `json:"measuredAt"`
}

// PagedStations represents a list of stations.
type PagedStations struct {
	Items []Station         `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
