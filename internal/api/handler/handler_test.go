package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwatch/groundwatch/internal/alert"
	"github.com/groundwatch/groundwatch/internal/api/handler"
	"github.com/groundwatch/groundwatch/internal/api/models"
	"github.com/groundwatch/groundwatch/internal/geo"
	"github.com/groundwatch/groundwatch/internal/groundwater"
	"github.com/groundwatch/groundwatch/internal/interpolation"
	"github.com/groundwatch/groundwatch/pkg/polyline"
)

var fetchedAt = time.Date(2026, 3, 8, 6, 0, 0, 0, time.UTC)

type staticProvider struct {
	snapshot *groundwater.Snapshot
	err      error
}

func (p *staticProvider) FetchSnapshot(_ context.Context) (*groundwater.Snapshot, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.snapshot, nil
}

// puneSnapshot holds three stations near Pune whose levels rose from 4.0 m to
// 4.4 m, plus one station with no usable location.
func puneSnapshot() *groundwater.Snapshot {
	snapshot := groundwater.NewSnapshot("test", fetchedAt)
	for i, id := range []string{"W001", "W002", "W003"} {
		snapshot.Stations[id] = &groundwater.Station{
			ID:        id,
			Name:      "Station " + id,
			District:  "Pune",
			State:     "Maharashtra",
			Lat:       18.53 + float64(i)*0.01,
			Lon:       73.85,
			UpdatedAt: fetchedAt,
		}
		snapshot.AddReading(&groundwater.Reading{StationID: id, Level: 4.0, MeasuredAt: fetchedAt.Add(-24 * time.Hour)})
		snapshot.AddReading(&groundwater.Reading{StationID: id, Level: 4.4, MeasuredAt: fetchedAt.Add(-time.Hour)})
	}
	snapshot.Stations["W999"] = &groundwater.Station{ID: "W999", Name: "Unlocated"}
	return snapshot
}

func newService(provider groundwater.Provider) *groundwater.Service {
	return groundwater.NewService(groundwater.ServiceConfig{
		Provider:      provider,
		Logger:        zerolog.New(io.Discard),
		Interpolation: interpolation.Options{MaxStations: interpolation.DefaultMaxStations, Power: interpolation.DefaultPower},
		Clock:         clockwork.NewFakeClockAt(fetchedAt),
	})
}

type fixture struct {
	router    http.Handler
	service   *groundwater.Service
	alerts    *alert.Service
	provider  *staticProvider
	districts *groundwater.InMemoryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)

	provider := &staticProvider{snapshot: puneSnapshot()}
	service := newService(provider)

	ids := 0
	alerts := alert.NewService(alert.ServiceConfig{
		Repository: alert.NewInMemoryRepository(),
		Logger:     logger,
		NewID: func() string {
			ids++
			return fmt.Sprintf("alt_%d", ids)
		},
	})

	gw := handler.NewGroundwaterHandler(handler.GroundwaterHandlerConfig{Service: service, Logger: logger})
	st := handler.NewStationHandler(handler.StationHandlerConfig{Stations: service, Alerts: alerts, Logger: logger})
	al := handler.NewAlertHandler(alerts, logger)
	districts := groundwater.NewInMemoryRepository()
	dh := handler.NewDistrictHandler(districts, logger)

	r := chi.NewRouter()
	r.Get("/v1/groundwater/estimate", gw.Estimate)
	r.Post("/v1/groundwater/estimates:batch", gw.BatchEstimate)
	r.Get("/v1/groundwater/transect", gw.Transect)
	r.Get("/v1/stations", st.ListNearest)
	r.Get("/v1/stations/summary", st.Summary)
	r.Get("/v1/stations/{stationId}", st.Get)
	r.Get("/v1/stations/{stationId}/alerts", st.ListAlerts)
	r.Get("/v1/alerts", al.List)
	r.Post("/v1/alerts/{alertId}/acknowledge", al.Acknowledge)
	r.Get("/v1/districts", dh.List)
	r.Get("/v1/metadata/enums", handler.NewMetadataHandler().GetEnums)

	return &fixture{router: r, service: service, alerts: alerts, provider: provider, districts: districts}
}

func (f *fixture) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func fieldsOf(p models.Problem) []string {
	fields := make([]string, 0, len(p.Errors))
	for _, e := range p.Errors {
		fields = append(fields, e.Field)
	}
	return fields
}

func TestEstimate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/groundwater/estimate?lat=18.545&lon=73.86", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	est := decode[models.Estimate](t, rec)
	assert.Equal(t, 4.4, est.Level)
	assert.Equal(t, "m_bgl", est.Unit)
	assert.Equal(t, "semi_critical", est.Status)
	assert.Equal(t, "medium", est.Confidence)
	assert.Equal(t, 3, est.StationsUsed)
	assert.Equal(t, 10.0, est.TrendPercent)
	require.NotNil(t, est.PreviousLevel)
	assert.Equal(t, 4.0, *est.PreviousLevel)
	assert.Len(t, est.Contributions, 3)
	assert.False(t, est.Fallback)
	assert.True(t, fetchedAt.Equal(est.SnapshotAt.Time()))
}

func TestEstimate_OptionsOverride(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/groundwater/estimate?lat=18.545&lon=73.86&maxStations=2&power=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	est := decode[models.Estimate](t, rec)
	assert.Equal(t, 2, est.StationsUsed)
	assert.Equal(t, "low", est.Confidence)
}

func TestEstimate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		fields []string
	}{
		{"missing coordinates", "", []string{"lat", "lon"}},
		{"latitude out of range", "lat=91&lon=73", []string{"lat"}},
		{"longitude not a number", "lat=18&lon=east", []string{"lon"}},
		{"bad options", "lat=18&lon=73&maxStations=0&power=-1", []string{"maxStations", "power"}},
		{"too many stations", "lat=18&lon=73&maxStations=51", []string{"maxStations"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodGet, "/v1/groundwater/estimate?"+tt.query, nil)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			p := decode[models.Problem](t, rec)
			assert.Equal(t, models.ProblemTypeValidation, p.Type)
			assert.ElementsMatch(t, tt.fields, fieldsOf(p))
		})
	}
}

func TestEstimate_ProviderUnavailable(t *testing.T) {
	f := newFixture(t)
	f.provider.err = errors.New("feed down")

	rec := f.do(t, http.MethodGet, "/v1/groundwater/estimate?lat=18.5&lon=73.8", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, models.ProblemTypeUnavailable, decode[models.Problem](t, rec).Type)
}

func TestEstimate_NoReadings(t *testing.T) {
	f := newFixture(t)
	f.provider.snapshot = groundwater.NewSnapshot("test", fetchedAt)

	rec := f.do(t, http.MethodGet, "/v1/groundwater/estimate?lat=18.5&lon=73.8", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBatchEstimate(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"points":[{"lat":18.545,"lon":73.86},{"lat":19.0,"lon":74.5}],"maxStations":3}`)
	rec := f.do(t, http.MethodPost, "/v1/groundwater/estimates:batch", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[models.BatchEstimateResponse](t, rec)
	require.Len(t, resp.Items, 2)
	require.NotNil(t, resp.Items[0].Estimate)
	assert.Equal(t, 18.545, resp.Items[0].Estimate.Point.Lat)
	require.NotNil(t, resp.Items[1].Estimate)
	assert.Equal(t, "low", resp.Items[1].Estimate.Confidence)
}

func TestBatchEstimate_Validation(t *testing.T) {
	tooMany := models.BatchEstimateRequest{Points: make([]models.Point, handler.MaxBatchPoints+1)}
	tooManyBody, err := json.Marshal(tooMany)
	require.NoError(t, err)

	tests := []struct {
		name   string
		body   []byte
		fields []string
	}{
		{"invalid json", []byte(`{"points":`), nil},
		{"no points", []byte(`{"points":[]}`), []string{"points"}},
		{"too many points", tooManyBody, []string{"points"}},
		{"bad point", []byte(`{"points":[{"lat":18,"lon":73},{"lat":-95,"lon":190}]}`), []string{"points[1].lat", "points[1].lon"}},
		{"bad options", []byte(`{"points":[{"lat":18,"lon":73}],"maxStations":0,"power":0}`), []string{"maxStations", "power"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/v1/groundwater/estimates:batch", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.ElementsMatch(t, tt.fields, fieldsOf(decode[models.Problem](t, rec)))
		})
	}
}

func TestTransect(t *testing.T) {
	f := newFixture(t)

	// Two vertices roughly 11 km apart along a meridian.
	encoded := polyline.Encode([]geo.Point{{Lat: 18.50, Lon: 73.85}, {Lat: 18.60, Lon: 73.85}})
	rec := f.do(t, http.MethodGet, "/v1/groundwater/transect?polyline="+url.QueryEscape(encoded)+"&intervalKm=2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tr := decode[models.Transect](t, rec)
	assert.Equal(t, 2.0, tr.IntervalKm)
	assert.Greater(t, tr.LengthKm, 10.0)
	require.NotEmpty(t, tr.Samples)
	for _, s := range tr.Samples {
		require.NotNil(t, s.Estimate)
		assert.Empty(t, s.Error)
		assert.Equal(t, "m_bgl", s.Estimate.Unit)
		assert.Equal(t, s.Point, s.Estimate.Point)
	}
	assert.InDelta(t, 18.50, tr.Samples[0].Point.Lat, 1e-5)
}

func TestTransect_KeepsFailedSamplesInPlace(t *testing.T) {
	f := newFixture(t)
	f.provider.snapshot = groundwater.NewSnapshot("test", fetchedAt)

	path := []geo.Point{{Lat: 18.50, Lon: 73.85}, {Lat: 18.60, Lon: 73.85}}
	rec := f.do(t, http.MethodGet, "/v1/groundwater/transect?polyline="+url.QueryEscape(polyline.Encode(path))+"&intervalKm=2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tr := decode[models.Transect](t, rec)
	want := polyline.Sample(path, 2)
	require.Len(t, tr.Samples, len(want))
	for i, s := range tr.Samples {
		assert.Nil(t, s.Estimate)
		assert.Equal(t, "no estimate available", s.Error)
		assert.InDelta(t, want[i].Lat, s.Point.Lat, 1e-6)
	}
}

func TestTransect_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/groundwater/transect?intervalKm=0", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"polyline", "intervalKm"}, fieldsOf(decode[models.Problem](t, rec)))
}

func TestListNearestStations(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/stations?lat=18.54&lon=73.85&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.PagedStations](t, rec)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "W002", resp.Items[0].StationID)
	require.NotNil(t, resp.Items[0].DistanceKm)
	assert.InDelta(t, 0, *resp.Items[0].DistanceKm, 1e-9)
	assert.Equal(t, 2, resp.Meta.Count)
	assert.Equal(t, 2, resp.Meta.Limit)
}

func TestGetStation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/stations/W001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	st := decode[models.Station](t, rec)
	assert.Equal(t, "Station W001", st.Name)
	assert.Equal(t, "semi_critical", st.Status)
	require.NotNil(t, st.Latest)
	assert.Equal(t, 4.4, st.Latest.Level)
	require.NotNil(t, st.Point)
	assert.Nil(t, st.DistanceKm)

	// Depth grew from 4.0 to 4.4: semi-critical with a slight decline.
	require.NotNil(t, st.HealthScore)
	assert.Equal(t, 85, *st.HealthScore)
	require.NotNil(t, st.Recharge)
	assert.Equal(t, groundwater.DefaultSpecificYield, st.Recharge.SpecificYield)
	assert.Equal(t, 2, st.Recharge.Readings)
	assert.Empty(t, st.Recharge.Events)
	assert.Zero(t, st.Recharge.TotalMm)

	rec = f.do(t, http.MethodGet, "/v1/stations/W999", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	unlocated := decode[models.Station](t, rec)
	assert.Nil(t, unlocated.Point)
	require.NotNil(t, unlocated.HealthScore)
	assert.Equal(t, 50, *unlocated.HealthScore)

	rec = f.do(t, http.MethodGet, "/v1/stations/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStation_Recharge(t *testing.T) {
	f := newFixture(t)
	snapshot := puneSnapshot()
	// W001 rose from 4.0 m to 3.6 m below ground.
	snapshot.AddReading(&groundwater.Reading{StationID: "W001", Level: 3.6, MeasuredAt: fetchedAt})
	f.provider.snapshot = snapshot

	rec := f.do(t, http.MethodGet, "/v1/stations/W001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	st := decode[models.Station](t, rec)
	require.NotNil(t, st.Recharge)
	require.Len(t, st.Recharge.Events, 1)
	assert.Equal(t, "2026-03-08", st.Recharge.Events[0].Date)
	assert.InDelta(t, 0.8, st.Recharge.Events[0].RiseM, 1e-9)
	assert.InDelta(t, 120, st.Recharge.Events[0].AmountMm, 1e-9)
	assert.InDelta(t, 120, st.Recharge.TotalMm, 1e-9)
	require.NotNil(t, st.HealthScore)
	assert.Equal(t, 100, *st.HealthScore)
}

func TestStationSummary(t *testing.T) {
	f := newFixture(t)
	snapshot := puneSnapshot()
	snapshot.AddReading(&groundwater.Reading{StationID: "W003", Level: 6.0, MeasuredAt: fetchedAt})
	snapshot.AddReading(&groundwater.Reading{StationID: "W001", Level: 3.0, MeasuredAt: fetchedAt})
	f.provider.snapshot = snapshot

	rec := f.do(t, http.MethodGet, "/v1/stations/summary?lat=18.53&lon=73.85", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	summary := decode[models.AreaSummary](t, rec)
	assert.Equal(t, 3, summary.StationCount)
	assert.InDelta(t, 4.47, summary.MeanLevel, 1e-9)
	assert.Equal(t, "m_bgl", summary.Unit)
	assert.Equal(t, 1, summary.RechargingStations)
	assert.Equal(t, 1, summary.CriticalStations)
	require.Len(t, summary.Stations, 3)
	assert.Equal(t, "W001", summary.Stations[0].StationID)

	rec = f.do(t, http.MethodGet, "/v1/stations/summary?lat=91", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"lat", "lon"}, fieldsOf(decode[models.Problem](t, rec)))
}

func TestDistricts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/districts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.Districts](t, rec).Items)

	require.NoError(t, f.districts.SaveDistrictSummaries(context.Background(), []*groundwater.DistrictSummary{
		{District: "Pune", State: "Maharashtra", Points: 4, MeanLevel: 4.456, WorstStatus: groundwater.StatusCritical, ComputedAt: fetchedAt},
	}))

	rec = f.do(t, http.MethodGet, "/v1/districts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[models.Districts](t, rec).Items
	require.Len(t, items, 1)
	assert.Equal(t, "Pune", items[0].District)
	assert.Equal(t, 4, items[0].Points)
	assert.Equal(t, 4.46, items[0].MeanLevel)
	assert.Equal(t, "critical", items[0].WorstStatus)
}

func TestStationAlerts(t *testing.T) {
	f := newFixture(t)
	_, err := f.alerts.Record(context.Background(), []alert.ReadingPair{
		{Current: &groundwater.Reading{StationID: "W001", Level: 6.2, MeasuredAt: fetchedAt}},
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/v1/stations/W001/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.PagedAlerts](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "CRITICAL_LEVEL", resp.Items[0].Type)
	assert.Equal(t, "HIGH", resp.Items[0].Severity)
	assert.Equal(t, alert.DefaultStationListLimit, resp.Meta.Limit)

	rec = f.do(t, http.MethodGet, "/v1/stations/W002/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[models.PagedAlerts](t, rec).Items)

	rec = f.do(t, http.MethodGet, "/v1/stations/NOPE/alerts", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlerts_ListAndAcknowledge(t *testing.T) {
	f := newFixture(t)
	_, err := f.alerts.Record(context.Background(), []alert.ReadingPair{
		{Current: &groundwater.Reading{StationID: "W001", Level: 6.2, MeasuredAt: fetchedAt}},
		{Current: &groundwater.Reading{StationID: "W002", Level: 3.0, MeasuredAt: fetchedAt.Add(time.Hour)}},
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/v1/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[models.PagedAlerts](t, rec)
	require.Len(t, all.Items, 2)
	assert.Equal(t, "W002", all.Items[0].StationID, "newest first")

	rec = f.do(t, http.MethodPost, "/v1/alerts/"+all.Items[0].ID+"/acknowledge", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	open := decode[models.PagedAlerts](t, rec)
	require.Len(t, open.Items, 1, "acknowledged alerts are hidden by default")
	assert.Equal(t, "W001", open.Items[0].StationID)

	rec = f.do(t, http.MethodGet, "/v1/alerts?unacknowledged=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.PagedAlerts](t, rec).Items, 1)

	rec = f.do(t, http.MethodGet, "/v1/alerts?unacknowledged=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.PagedAlerts](t, rec).Items, 2)

	rec = f.do(t, http.MethodPost, "/v1/alerts/alt_missing/acknowledge", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAlerts_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/alerts?limit=abc&unacknowledged=maybe", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.ElementsMatch(t, []string{"limit", "unacknowledged"}, fieldsOf(decode[models.Problem](t, rec)))
}

func TestGetEnums(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/metadata/enums", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	enums := decode[models.Enums](t, rec)
	assert.Equal(t, []string{"safe", "semi_critical", "critical"}, enums.Statuses)
	assert.Equal(t, []string{"high", "medium", "low"}, enums.Confidence)
	assert.ElementsMatch(t, []string{"CRITICAL_LEVEL", "RAPID_DECLINE", "LOW_LEVEL_WARNING"}, enums.AlertTypes)
	assert.Equal(t, []string{"HIGH", "MEDIUM", "LOW"}, enums.AlertSeverities)
	assert.Equal(t, 5.0, enums.Thresholds.CriticalLevelM)
	assert.Equal(t, 2.5, enums.Thresholds.SemiCriticalLevelM)
	assert.Equal(t, "m_bgl", enums.Unit)
}
