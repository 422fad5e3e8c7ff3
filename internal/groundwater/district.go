package groundwater

import (
	"context"
	"time"
)

// DistrictSummary aggregates the estimates of one district's target points.
type DistrictSummary struct {
	District string
	State    string

	// Points is the number of points estimated.
	Points int

	MeanLevel   float64
	WorstStatus Status

	ComputedAt time.Time
}

// DistrictStore persists the latest summary per district.
type DistrictStore interface {
	// SaveDistrictSummaries replaces the stored summary of each district.
	SaveDistrictSummaries(ctx context.Context, summaries []*DistrictSummary) error

	// DistrictSummaries returns the latest summary per district ordered by
	// state and district.
	DistrictSummaries(ctx context.Context) ([]*DistrictSummary, error)
}

// HistoryRepository serves a station's reading history.
type HistoryRepository interface {
	// ReadingHistory returns up to limit of the station's most recent
	// readings, oldest first.
	ReadingHistory(ctx context.Context, stationID string, limit int) ([]*Reading, error)
}
