package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/groundwatch/groundwatch/internal/api/middleware"
	"github.com/groundwatch/groundwatch/internal/api/models"
	"github.com/groundwatch/groundwatch/internal/api/response"
	"github.com/groundwatch/groundwatch/internal/geo"
	"github.com/groundwatch/groundwatch/internal/groundwater"
	"github.com/groundwatch/groundwatch/internal/interpolation"
)

// noEstimate is the item error for a point no estimate could be made at.
const noEstimate = "no estimate available"

// EstimateService produces live groundwater estimates.
type EstimateService interface {
	EstimateAt(ctx context.Context, p geo.Point, opts interpolation.Options) (*groundwater.LiveEstimate, error)
	EstimateMany(ctx context.Context, points []geo.Point, opts interpolation.Options) ([]*groundwater.LiveEstimate, error)
	EstimateAlong(ctx context.Context, encoded string, intervalKm float64, opts interpolation.Options) (*groundwater.Transect, error)
}

// GroundwaterHandlerConfig holds dependencies for GroundwaterHandler.
type GroundwaterHandlerConfig struct {
	Service EstimateService

	// Metrics is optional.
	Metrics *middleware.EstimateMetrics

	Logger zerolog.Logger
}

// GroundwaterHandler handles groundwater estimate endpoints.
type GroundwaterHandler struct {
	service EstimateService
	metrics *middleware.EstimateMetrics
	logger  zerolog.Logger
}

// NewGroundwaterHandler creates a new GroundwaterHandler.
func NewGroundwaterHandler(cfg GroundwaterHandlerConfig) *GroundwaterHandler {
	return &GroundwaterHandler{
		service: cfg.Service,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// Estimate handles GET /v1/groundwater/estimate.
func (h *GroundwaterHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r)
	lat := q.floatParam("lat", true, 0, -90, 90)
	lon := q.floatParam("lon", true, 0, -180, 180)
	opts := interpolation.Options{
		MaxStations: q.intParam("maxStations", 0, 1, MaxStationsLimit),
		Power:       q.power(),
	}
	if q.writeErrors(w, r) {
		return
	}

	est, err := h.service.EstimateAt(r.Context(), geo.Point{Lat: lat, Lon: lon}, opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("groundwater.confidence", string(est.Confidence)),
		attribute.String("groundwater.status", string(est.Status)),
		attribute.Int("groundwater.stations_used", est.StationsUsed),
		attribute.Bool("groundwater.fallback", est.Fallback),
	)
	h.record(r.Context(), est)
	response.JSON(w, r, http.StatusOK, toEstimate(est))
}

// BatchEstimate handles POST /v1/groundwater/estimates:batch.
func (h *GroundwaterHandler) BatchEstimate(w http.ResponseWriter, r *http.Request) {
	var input models.BatchEstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	points, opts, fieldErrors := validateBatch(&input)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid batch request", fieldErrors)
		return
	}

	estimates, err := h.service.EstimateMany(r.Context(), points, opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordRequestPoints(r.Context(), "batch", len(points))
	}

	resp := models.BatchEstimateResponse{Items: make([]models.BatchEstimateItem, 0, len(estimates))}
	for _, est := range estimates {
		if est == nil {
			resp.Items = append(resp.Items, models.BatchEstimateItem{Error: noEstimate})
			continue
		}
		h.record(r.Context(), est)
		resp.Items = append(resp.Items, models.BatchEstimateItem{Estimate: toEstimate(est)})
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// Transect handles GET /v1/groundwater/transect.
func (h *GroundwaterHandler) Transect(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r)
	encoded := q.values.Get("polyline")
	if encoded == "" {
		q.fail("polyline", "is required", models.CodeRequired)
	}
	interval := q.floatParam("intervalKm", false, DefaultInterval, MinIntervalKm, MaxIntervalKm)
	opts := interpolation.Options{
		MaxStations: q.intParam("maxStations", 0, 1, MaxStationsLimit),
		Power:       q.power(),
	}
	if q.writeErrors(w, r) {
		return
	}

	transect, err := h.service.EstimateAlong(r.Context(), encoded, interval, opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordRequestPoints(r.Context(), "transect", len(transect.Samples))
	}

	resp := models.Transect{
		LengthKm:   transect.LengthKm,
		IntervalKm: transect.IntervalKm,
		Samples:    make([]models.TransectSample, 0, len(transect.Samples)),
	}
	for i, est := range transect.Samples {
		var sample models.TransectSample
		if i < len(transect.Points) {
			sample.Point = models.Point{Lat: transect.Points[i].Lat, Lon: transect.Points[i].Lon}
		}
		if est == nil {
			sample.Error = noEstimate
		} else {
			h.record(r.Context(), est)
			sample.Estimate = toEstimate(est)
		}
		resp.Samples = append(resp.Samples, sample)
	}
	response.JSON(w, r, http.StatusOK, resp)
}

func (h *GroundwaterHandler) record(ctx context.Context, est *groundwater.LiveEstimate) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordEstimate(ctx, string(est.Confidence), string(est.Status), est.Fallback)
}

func validateBatch(input *models.BatchEstimateRequest) ([]geo.Point, interpolation.Options, []models.FieldError) {
	var errs []models.FieldError
	fail := func(field, message, code string) {
		errs = append(errs, models.FieldError{Field: field, Message: message, Code: code})
	}

	switch n := len(input.Points); {
	case n == 0:
		fail("points", "must contain at least one point", models.CodeRequired)
	case n > MaxBatchPoints:
		fail("points", fmt.Sprintf("must contain at most %d points", MaxBatchPoints), models.CodeTooMany)
	}

	points := make([]geo.Point, 0, len(input.Points))
	for i, p := range input.Points {
		if p.Lat < -90 || p.Lat > 90 {
			fail(fmt.Sprintf("points[%d].lat", i), "must be between -90 and 90", models.CodeOutOfRange)
		}
		if p.Lon < -180 || p.Lon > 180 {
			fail(fmt.Sprintf("points[%d].lon", i), "must be between -180 and 180", models.CodeOutOfRange)
		}
		points = append(points, geo.Point{Lat: p.Lat, Lon: p.Lon})
	}

	var opts interpolation.Options
	if input.MaxStations != nil {
		if *input.MaxStations < 1 || *input.MaxStations > MaxStationsLimit {
			fail("maxStations", fmt.Sprintf("must be between 1 and %d", MaxStationsLimit), models.CodeOutOfRange)
		}
		opts.MaxStations = *input.MaxStations
	}
	if input.Power != nil {
		if *input.Power <= 0 || *input.Power > MaxPower {
			fail("power", fmt.Sprintf("must be greater than 0 and at most %g", MaxPower), models.CodeOutOfRange)
		}
		opts.Power = *input.Power
	}

	return points, opts, errs
}
