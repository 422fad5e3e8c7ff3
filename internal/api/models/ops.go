package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Feeds      []FeedStatus      `json:"feeds"`
	Snapshot   SnapshotStatus    `json:"snapshot"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// FeedStatus represents the status of an upstream data feed.
type FeedStatus struct {
	Feed                string       `json:"feed"`
	Status              HealthStatus `json:"status"`
	CircuitState        string       `json:"circuitState"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastSuccessAt       *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *Timestamp   `json:"lastFailureAt,omitempty"`
	Message             *string      `json:"message,omitempty"`
}

// SnapshotStatus describes the cached station snapshot.
type SnapshotStatus struct {
	HasData      bool       `json:"hasData"`
	Source       string     `json:"source,omitempty"`
	StationCount int        `json:"stationCount"`
	FetchedAt    *Timestamp `json:"fetchedAt,omitempty"`
	ExpiresAt    *Timestamp `json:"expiresAt,omitempty"`
	Expired      bool       `json:"expired"`
	Stale        bool       `json:"stale"`
}
