package models

// LevelUnit is the unit of every water level in the API: metres below
// ground level.
const LevelUnit = "m_bgl"

// Estimate is a live groundwater level estimate at a point.
type Estimate struct {
	Point            Point          `json:"point"`
	Level            float64        `json:"level"`
	Unit             string         `json:"unit"`
	Status           string         `json:"status"`
	Confidence       string         `json:"confidence"`
	StationsUsed     int            `json:"stationsUsed"`
	NearestStationKm float64        `json:"nearestStationKm"`
	Fallback         bool           `json:"fallback,omitempty"`
	TrendPercent     float64        `json:"trendPercent"`
	PreviousLevel    *float64       `json:"previousLevel,omitempty"`
	Contributions    []Contribution `json:"contributions,omitempty"`
	SnapshotAt       Timestamp      `json:"snapshotAt"`
}

// Contribution is one station's share of an estimate.
type Contribution struct {
	StationID  string  `json:"stationId"`
	DistanceKm float64 `json:"distanceKm"`
	Level      float64 `json:"level"`
	Weight     float64 `json:"weight"`
}

// BatchEstimateRequest is the body of POST /v1/groundwater/estimates:batch.
type BatchEstimateRequest struct {
	Points      []Point  `json:"points"`
	MaxStations *int     `json:"maxStations,omitempty"`
	Power       *float64 `json:"power,omitempty"`
}

// BatchEstimateResponse holds one item per requested point, in order.
type BatchEstimateResponse struct {
	Items []BatchEstimateItem `json:"items"`
}

// BatchEstimateItem is an estimate or the reason there is none.
type BatchEstimateItem struct {
	Estimate *Estimate `json:"estimate,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Transect is a series of estimates along a path, one sample per sampled
// point in path order.
type Transect struct {
	LengthKm   float64          `json:"lengthKm"`
	IntervalKm float64          `json:"intervalKm"`
	Samples    []TransectSample `json:"samples"`
}

// TransectSample is the estimate at one sampled point, or the reason there
// is none.
type TransectSample struct {
	Point    Point     `json:"point"`
	Estimate *Estimate `json:"estimate,omitempty"`
	Error    string    `json:"error,omitempty"`
}
