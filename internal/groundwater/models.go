// Package groundwater provides DWLR station data, snapshot caching and live
// groundwater level estimates.
package groundwater

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/groundwatch/groundwatch/internal/geo"
	"github.com/groundwatch/groundwatch/internal/interpolation"
)

// Provider errors.
var (
	ErrStationNotFound     = errors.New("station not found")
	ErrNoReadings          = errors.New("no readings available")
	ErrProviderUnavailable = errors.New("groundwater provider unavailable")
)

// Station is a Digital Water Level Recorder site.
type Station struct {
	// ID is the station's well code (e.g. "W06744").
	ID       string
	Name     string
	District string
	State    string
	Lat      float64
	Lon      float64

	UpdatedAt time.Time
}

// Point returns the station location.
func (s *Station) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lon: s.Lon}
}

// HasValidLocation reports whether the station can be placed on a map.
// Feeds report unknown coordinates as 0, so a zero latitude or longitude is
// treated as missing.
func (s *Station) HasValidLocation() bool {
	if s.Lat == 0 || s.Lon == 0 {
		return false
	}
	return s.Point().Validate() == nil
}

// Reading is a single water level measurement.
type Reading struct {
	StationID string

	// Level is the depth to water in metres below ground level.
	Level float64

	MeasuredAt time.Time
}

// Snapshot is a point-in-time view of every station with its latest and
// previous reading.
type Snapshot struct {
	Stations map[string]*Station

	// Latest holds the most recent reading per station ID.
	Latest map[string]*Reading

	// Previous holds the reading before Latest per station ID, when known.
	Previous map[string]*Reading

	FetchedAt time.Time
	Provider  string
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot(provider string, fetchedAt time.Time) *Snapshot {
	return &Snapshot{
		Stations:  make(map[string]*Station),
		Latest:    make(map[string]*Reading),
		Previous:  make(map[string]*Reading),
		FetchedAt: fetchedAt,
		Provider:  provider,
	}
}

// AddReading records r as the latest reading for its station, moving the
// current latest into Previous. Readings older than the current latest are
// only kept if they are newer than Previous.
func (s *Snapshot) AddReading(r *Reading) {
	latest, ok := s.Latest[r.StationID]
	if !ok {
		s.Latest[r.StationID] = r
		return
	}
	if r.MeasuredAt.After(latest.MeasuredAt) {
		s.Previous[r.StationID] = latest
		s.Latest[r.StationID] = r
		return
	}
	if r.MeasuredAt.Equal(latest.MeasuredAt) {
		return
	}
	if prev, ok := s.Previous[r.StationID]; !ok || r.MeasuredAt.After(prev.MeasuredAt) {
		s.Previous[r.StationID] = r
	}
}

// StationList returns all stations ordered by ID.
func (s *Snapshot) StationList() []*Station {
	stations := make([]*Station, 0, len(s.Stations))
	for _, station := range s.Stations {
		stations = append(stations, station)
	}
	sort.Slice(stations, func(a, b int) bool {
		return stations[a].ID < stations[b].ID
	})
	return stations
}

// Observations returns the latest reading of every located station as
// interpolation input. Stations without a reading or a usable location and
// readings with non-finite levels are skipped.
func (s *Snapshot) Observations() []interpolation.Observation {
	return s.observations(false)
}

// PreviousObservations returns the same stations as Observations, valued at
// their previous reading. A station with only one reading keeps its latest
// value, so both sets cover the same wells and a first reading never shows
// up as a change. It returns nil when no station has a previous reading.
func (s *Snapshot) PreviousObservations() []interpolation.Observation {
	return s.observations(true)
}

func (s *Snapshot) observations(previous bool) []interpolation.Observation {
	out := make([]interpolation.Observation, 0, len(s.Latest))
	changed := false
	for _, station := range s.StationList() {
		latest, ok := s.Latest[station.ID]
		if !ok || !station.HasValidLocation() || !finite(latest.Level) {
			continue
		}
		value := latest.Level
		if previous {
			if prev, ok := s.Previous[station.ID]; ok && finite(prev.Level) {
				value = prev.Level
				changed = true
			}
		}
		out = append(out, interpolation.Observation{
			StationID: station.ID,
			Location:  station.Point(),
			Value:     value,
		})
	}
	if previous && !changed {
		return nil
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
