// Package worker runs background ingestion and estimate refresh jobs for
// groundwatch.
package worker

import (
	"sort"
	"time"

	"github.com/groundwatch/groundwatch/internal/geo"
)

// RefreshTarget is a district whose estimate points are refreshed together.
type RefreshTarget struct {
	// Name is the district name.
	Name  string
	State string

	// Points are the locations to estimate, typically block headquarters.
	Points []geo.Point

	// Priority determines refresh order (lower = higher priority).
	Priority int
}

// RefreshConfig holds configuration for the estimate refresh job.
type RefreshConfig struct {
	// Targets are the districts to refresh.
	// If empty, uses DefaultRefreshTargets.
	Targets []RefreshTarget

	// Concurrency is the number of concurrent estimates.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each estimate.
	// Default: 30 seconds
	Timeout time.Duration
}

// IngestConfig holds configuration for the ingest job.
type IngestConfig struct {
	// InitialWindow is how far back the first run reads.
	// Default: 7 days
	InitialWindow time.Duration

	// Overlap is re-read on each run to catch late readings.
	// Default: 1 hour
	Overlap time.Duration
}

// DefaultIngestConfig returns the default ingest configuration.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		InitialWindow: 7 * 24 * time.Hour,
		Overlap:       time.Hour,
	}
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Targets:     DefaultRefreshTargets(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultRefreshTargets returns district targets in Maharashtra and Bihar.
func DefaultRefreshTargets() []RefreshTarget {
	return []RefreshTarget{
		{
			Name:     "Pune",
			State:    "Maharashtra",
			Priority: 1,
			Points: []geo.Point{
				{Lat: 18.5204, Lon: 73.8567}, // Pune city
				{Lat: 18.7557, Lon: 73.4091}, // Lonavala
				{Lat: 18.1530, Lon: 74.5797}, // Baramati
				{Lat: 19.0948, Lon: 74.0283}, // Junnar
			},
		},
		{
			Name:     "Nashik",
			State:    "Maharashtra",
			Priority: 1,
			Points: []geo.Point{
				{Lat: 19.9975, Lon: 73.7898}, // Nashik city
				{Lat: 20.5579, Lon: 74.5287}, // Malegaon
				{Lat: 20.0112, Lon: 74.4804}, // Niphad
			},
		},
		{
			Name:     "Aurangabad",
			State:    "Maharashtra",
			Priority: 1,
			Points: []geo.Point{
				{Lat: 19.8762, Lon: 75.3433}, // Aurangabad city
				{Lat: 19.8950, Lon: 75.7100}, // Badnapur
			},
		},
		{
			Name:     "Patna",
			State:    "Bihar",
			Priority: 1,
			Points: []geo.Point{
				{Lat: 25.5941, Lon: 85.1376}, // Patna city
				{Lat: 25.4920, Lon: 85.7940}, // Mokama
			},
		},
		{
			Name:     "Gaya",
			State:    "Bihar",
			Priority: 2,
			Points: []geo.Point{
				{Lat: 24.7914, Lon: 85.0002}, // Gaya city
			},
		},
		{
			Name:     "Muzaffarpur",
			State:    "Bihar",
			Priority: 2,
			Points: []geo.Point{
				{Lat: 26.1209, Lon: 85.3647}, // Muzaffarpur city
			},
		},
		{
			Name:     "Darbhanga",
			State:    "Bihar",
			Priority: 2,
			Points: []geo.Point{
				{Lat: 26.1542, Lon: 85.8918}, // Darbhanga city
			},
		},
		{
			Name:     "Nagpur",
			State:    "Maharashtra",
			Priority: 3,
			Points: []geo.Point{
				{Lat: 21.1458, Lon: 79.0882}, // Nagpur city
			},
		},
		{
			Name:     "Solapur",
			State:    "Maharashtra",
			Priority: 3,
			Points: []geo.Point{
				{Lat: 17.6599, Lon: 75.9064}, // Solapur city
			},
		},
	}
}

// targetPoint is a single point tagged with its district.
type targetPoint struct {
	target string
	state  string
	point  geo.Point
}

// orderedPoints returns every point, highest-priority districts first.
func (c RefreshConfig) orderedPoints() []targetPoint {
	targets := make([]RefreshTarget, len(c.Targets))
	copy(targets, c.Targets)
	sort.SliceStable(targets, func(a, b int) bool {
		return targets[a].Priority < targets[b].Priority
	})

	var points []targetPoint
	for _, target := range targets {
		for _, p := range target.Points {
			points = append(points, targetPoint{target: target.Name, state: target.State, point: p})
		}
	}
	return points
}

// AllPoints returns all points from all targets, ordered by priority.
func (c RefreshConfig) AllPoints() []geo.Point {
	ordered := c.orderedPoints()
	points := make([]geo.Point, 0, len(ordered))
	for _, tp := range ordered {
		points = append(points, tp.point)
	}
	return points
}

// TotalPoints returns the total number of points to refresh.
func (c RefreshConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
