// Package interpolation estimates groundwater levels at arbitrary locations
// from nearby station readings using inverse distance weighting.
//
// Every function in this package is pure: inputs are never mutated and no
// state is kept between calls, so they are safe for concurrent use.
package interpolation

import (
	"errors"
	"math"
	"sort"

	"github.com/groundwatch/groundwatch/internal/geo"
)

const (
	// DefaultMaxStations is the number of nearest stations used by default.
	DefaultMaxStations = 5

	// DefaultPower is the default distance decay exponent.
	DefaultPower = 2.0
)

// ErrInvalidValue is returned by NewObservation for a non-finite reading.
var ErrInvalidValue = errors.New("observation value must be a finite number")

// Observation is the most recent reading of a single station.
type Observation struct {
	// StationID identifies the source station. It does not affect the estimate.
	StationID string

	Location geo.Point

	// Value is the water level in metres below ground level.
	Value float64
}

// NewObservation creates an Observation, rejecting invalid coordinates and
// non-finite values.
func NewObservation(lat, lon, value float64) (Observation, error) {
	p, err := geo.NewPoint(lat, lon)
	if err != nil {
		return Observation{}, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Observation{}, ErrInvalidValue
	}
	return Observation{Location: p, Value: value}, nil
}

// Options tunes the interpolation. Non-positive fields fall back to the
// package defaults.
type Options struct {
	// MaxStations caps how many of the nearest stations contribute.
	MaxStations int

	// Power is the inverse distance exponent. Higher values favour the
	// nearest station more sharply.
	Power float64
}

func (o Options) withDefaults() Options {
	if o.MaxStations <= 0 {
		o.MaxStations = DefaultMaxStations
	}
	if o.Power <= 0 || math.IsNaN(o.Power) {
		o.Power = DefaultPower
	}
	return o
}

// Contribution describes how much one station contributed to an estimate.
type Contribution struct {
	StationID  string
	DistanceKm float64
	Value      float64

	// Weight is the normalized weight in [0, 1].
	Weight float64
}

// Result is an interpolated value together with its quality indicators.
type Result struct {
	// Value is the estimated level rounded to two decimals.
	Value float64

	Confidence Confidence

	// StationsUsed is the number of stations behind Value.
	StationsUsed int

	// NearestDistanceKm is the distance to the closest contributing station.
	NearestDistanceKm float64

	// Fallback is set when every station was co-located with the target and
	// Value is the plain mean of all observations.
	Fallback bool

	// Contributions lists the weighted stations, nearest first. Empty when
	// Fallback is set.
	Contributions []Contribution
}

type candidate struct {
	obs      Observation
	distance float64
}

// Estimate returns the IDW estimate at target using the default options.
func Estimate(target geo.Point, observations []Observation) float64 {
	return Interpolate(target, observations, Options{}).Value
}

// EstimateWith returns the IDW estimate at target using opts.
func EstimateWith(target geo.Point, observations []Observation, opts Options) float64 {
	return Interpolate(target, observations, opts).Value
}

// Interpolate estimates the level at target from the nearest observations.
//
// Observations exactly at the target are skipped, since their weight would be
// infinite. If nothing remains after that, the result is the unweighted mean
// of all observations. An empty input yields a zero value with low confidence.
func Interpolate(target geo.Point, observations []Observation, opts Options) Result {
	if len(observations) == 0 {
		return Result{Confidence: ConfidenceLow}
	}
	opts = opts.withDefaults()

	candidates := make([]candidate, 0, len(observations))
	for _, obs := range observations {
		d := geo.DistanceKm(target, obs.Location)
		if d == 0 {
			continue
		}
		candidates = append(candidates, candidate{obs: obs, distance: d})
	}

	if len(candidates) == 0 {
		return fallbackMean(observations)
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].distance < candidates[b].distance
	})
	if len(candidates) > opts.MaxStations {
		candidates = candidates[:opts.MaxStations]
	}

	// Weights are taken relative to the nearest station, (dmin/d)^p, which
	// gives the same mean as 1/d^p but cannot overflow: the nearest weight is
	// 1 and the rest lie in (0, 1].
	nearest := candidates[0].distance
	contributions := make([]Contribution, 0, len(candidates))
	var weightedSum, totalWeight float64
	for _, c := range candidates {
		w := math.Pow(nearest/c.distance, opts.Power)
		weightedSum += c.obs.Value * w
		totalWeight += w
		contributions = append(contributions, Contribution{
			StationID:  c.obs.StationID,
			DistanceKm: c.distance,
			Value:      c.obs.Value,
			Weight:     w,
		})
	}
	for i := range contributions {
		contributions[i].Weight /= totalWeight
	}

	return Result{
		Value:             round(weightedSum/totalWeight, 2),
		Confidence:        Classify(nearest, len(candidates)),
		StationsUsed:      len(candidates),
		NearestDistanceKm: nearest,
		Contributions:     contributions,
	}
}

func fallbackMean(observations []Observation) Result {
	var sum float64
	for _, obs := range observations {
		sum += obs.Value
	}
	return Result{
		Value:        round(sum/float64(len(observations)), 2),
		Confidence:   Classify(0, len(observations)),
		StationsUsed: len(observations),
		Fallback:     true,
	}
}

// round rounds v to the given number of decimal places.
func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
