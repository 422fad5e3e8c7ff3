package interpolation_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwatch/groundwatch/internal/geo"
	"github.com/groundwatch/groundwatch/internal/interpolation"
)

var target = geo.Point{Lat: 19.0, Lon: 73.0}

func obs(id string, lat, lon, value float64) interpolation.Observation {
	return interpolation.Observation{
		StationID: id,
		Location:  geo.Point{Lat: lat, Lon: lon},
		Value:     value,
	}
}

// ringStations returns n stations at increasing distance north of target.
func ringStations(n int, value func(i int) float64) []interpolation.Observation {
	stations := make([]interpolation.Observation, 0, n)
	for i := 0; i < n; i++ {
		stations = append(stations, obs("W"+string(rune('A'+i)), 19.0+0.01*float64(i+1), 73.0, value(i)))
	}
	return stations
}

func TestEstimate_Empty(t *testing.T) {
	assert.Equal(t, 0.0, interpolation.Estimate(target, nil))
	assert.Equal(t, 0.0, interpolation.Estimate(target, []interpolation.Observation{}))

	result := interpolation.Interpolate(target, nil, interpolation.Options{})
	assert.Equal(t, interpolation.ConfidenceLow, result.Confidence)
	assert.Zero(t, result.StationsUsed)
	assert.False(t, result.Fallback)
}

func TestEstimate_IdenticalValues(t *testing.T) {
	stations := []interpolation.Observation{
		obs("W1", 19.01, 73.0, 7.25),
		obs("W2", 18.7, 73.4, 7.25),
		obs("W3", 19.5, 72.5, 7.25),
		obs("W4", 20.1, 74.0, 7.25),
	}

	assert.InDelta(t, 7.25, interpolation.Estimate(target, stations), 0.005)
	assert.InDelta(t, 7.25, interpolation.Estimate(geo.Point{Lat: 21, Lon: 70}, stations), 0.005)
}

func TestEstimate_NearStationDominates(t *testing.T) {
	stations := []interpolation.Observation{
		obs("near", 19.01, 73.0, 10),
		obs("far", 19.2, 73.0, 20),
	}

	result := interpolation.Interpolate(target, stations, interpolation.Options{Power: 2})
	assert.InDelta(t, 10.02, result.Value, 0.1)
	assert.Equal(t, 2, result.StationsUsed)
	assert.InDelta(t, 1.11, result.NearestDistanceKm, 0.01)

	require.Len(t, result.Contributions, 2)
	assert.Equal(t, "near", result.Contributions[0].StationID)
	ratio := result.Contributions[0].Weight / result.Contributions[1].Weight
	assert.InDelta(t, 400, ratio, 10)
}

func TestEstimate_RoundsToTwoDecimals(t *testing.T) {
	stations := []interpolation.Observation{
		obs("a", 19.01, 73.0, 1.0/3),
		obs("b", 18.99, 73.0, 1.0/3),
	}

	v := interpolation.Estimate(target, stations)
	assert.Equal(t, 0.33, v)
}

func TestEstimate_IgnoresStationsBeyondMaxStations(t *testing.T) {
	nearest := ringStations(5, func(i int) float64 { return float64(3 + i) })
	base := interpolation.Estimate(target, nearest)

	extended := append([]interpolation.Observation{}, nearest...)
	extended = append(extended,
		obs("far1", 20.0, 73.0, 500),
		obs("far2", 17.5, 74.0, -200),
		obs("far3", 19.0, 75.0, 1e6),
	)

	assert.Equal(t, base, interpolation.Estimate(target, extended))

	result := interpolation.Interpolate(target, extended, interpolation.Options{})
	assert.Equal(t, interpolation.DefaultMaxStations, result.StationsUsed)
}

func TestEstimate_MaxStationsOption(t *testing.T) {
	stations := ringStations(4, func(i int) float64 { return float64(10 * (i + 1)) })

	result := interpolation.Interpolate(target, stations, interpolation.Options{MaxStations: 1})
	assert.Equal(t, 1, result.StationsUsed)
	assert.Equal(t, 10.0, result.Value)
}

func TestEstimate_CoLocatedStationExcluded(t *testing.T) {
	stations := []interpolation.Observation{
		obs("here", 19.0, 73.0, 7),
		obs("there", 19.2, 73.0, 2),
	}

	result := interpolation.Interpolate(target, stations, interpolation.Options{})
	assert.Equal(t, 2.0, result.Value)
	assert.Equal(t, 1, result.StationsUsed)
	assert.False(t, result.Fallback)
}

func TestEstimate_AllCoLocatedFallsBackToMean(t *testing.T) {
	single := []interpolation.Observation{obs("here", 19.0, 73.0, 7)}
	assert.Equal(t, 7.0, interpolation.Estimate(target, single))

	several := []interpolation.Observation{
		obs("a", 19.0, 73.0, 4),
		obs("b", 19.0, 73.0, 5),
		obs("c", 19.0, 73.0, 9),
	}
	result := interpolation.Interpolate(target, several, interpolation.Options{})
	assert.True(t, result.Fallback)
	assert.Equal(t, 6.0, result.Value)
	assert.Equal(t, 3, result.StationsUsed)
	assert.Zero(t, result.NearestDistanceKm)
	assert.Empty(t, result.Contributions)
	assert.Equal(t, interpolation.ConfidenceMedium, result.Confidence)
}

func TestEstimate_LowPowerApproachesMean(t *testing.T) {
	stations := ringStations(3, func(i int) float64 { return float64(3 * (i + 1)) }) // 3, 6, 9

	v := interpolation.EstimateWith(target, stations, interpolation.Options{Power: 1e-9})
	assert.InDelta(t, 6.0, v, 0.01)
}

func TestEstimate_HighPowerFavoursNearest(t *testing.T) {
	stations := ringStations(3, func(i int) float64 { return float64(3 * (i + 1)) })

	v := interpolation.EstimateWith(target, stations, interpolation.Options{Power: 30})
	assert.InDelta(t, 3.0, v, 0.01)
}

func TestEstimate_HighPowerAtGlobalDistanceStaysFinite(t *testing.T) {
	// Both stations sit near the antipode, so 1/d^p underflows to zero for
	// each of them at this power.
	stations := []interpolation.Observation{
		obs("antipode-1", -18, -107, 2),
		obs("antipode-2", -17, -107, 4),
	}

	res := interpolation.Interpolate(target, stations, interpolation.Options{Power: 90})
	assert.False(t, math.IsNaN(res.Value) || math.IsInf(res.Value, 0), "got %v", res.Value)
	assert.Greater(t, res.Value, 2.0)
	assert.Less(t, res.Value, 4.0)
	assert.Equal(t, "antipode-2", res.Contributions[0].StationID)
	assert.Greater(t, res.Contributions[0].Weight, res.Contributions[1].Weight)
}

func TestEstimate_NonPositiveOptionsUseDefaults(t *testing.T) {
	stations := ringStations(7, func(i int) float64 { return float64(i) })

	want := interpolation.Estimate(target, stations)
	got := interpolation.EstimateWith(target, stations, interpolation.Options{MaxStations: -1, Power: 0})
	assert.Equal(t, want, got)
}

func TestEstimate_DoesNotMutateInput(t *testing.T) {
	stations := []interpolation.Observation{
		obs("far", 19.3, 73.0, 12),
		obs("near", 19.01, 73.0, 4),
		obs("mid", 19.1, 73.0, 8),
		obs("here", 19.0, 73.0, 99),
	}
	original := append([]interpolation.Observation{}, stations...)

	first := interpolation.Estimate(target, stations)
	second := interpolation.Estimate(target, stations)

	assert.Equal(t, first, second)
	assert.Equal(t, original, stations)
}

func TestEstimate_ContributionWeightsSumToOne(t *testing.T) {
	stations := ringStations(5, func(i int) float64 { return float64(2 + i) })

	result := interpolation.Interpolate(target, stations, interpolation.Options{})

	var total float64
	for i, c := range result.Contributions {
		total += c.Weight
		assert.GreaterOrEqual(t, c.DistanceKm, 0.0)
		if i > 0 {
			assert.GreaterOrEqual(t, c.DistanceKm, result.Contributions[i-1].DistanceKm)
		}
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestEstimate_NaNPropagates(t *testing.T) {
	stations := []interpolation.Observation{
		obs("a", 19.01, 73.0, math.NaN()),
		obs("b", 19.2, 73.0, 5),
	}

	assert.True(t, math.IsNaN(interpolation.Estimate(target, stations)))
}

func TestNewObservation(t *testing.T) {
	o, err := interpolation.NewObservation(19.0, 73.0, 4.2)
	require.NoError(t, err)
	assert.Equal(t, geo.Point{Lat: 19.0, Lon: 73.0}, o.Location)
	assert.Equal(t, 4.2, o.Value)

	_, err = interpolation.NewObservation(95, 73.0, 4.2)
	assert.ErrorIs(t, err, geo.ErrInvalidLatitude)

	_, err = interpolation.NewObservation(19.0, 73.0, math.Inf(-1))
	assert.ErrorIs(t, err, interpolation.ErrInvalidValue)
}
