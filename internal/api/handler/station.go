package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/alert"
	"github.com/groundwatch/groundwatch/internal/api/models"
	"github.com/groundwatch/groundwatch/internal/api/response"
	"github.com/groundwatch/groundwatch/internal/geo"
	"github.com/groundwatch/groundwatch/internal/groundwater"
)

// StationService looks up stations in the current snapshot.
type StationService interface {
	NearestStations(ctx context.Context, p geo.Point, limit int) ([]*groundwater.StationLevel, error)
	GetStation(ctx context.Context, stationID string) (*groundwater.StationLevel, error)
	StationInsights(ctx context.Context, stationID string) (*groundwater.StationInsights, error)
	AreaSummary(ctx context.Context, p geo.Point) (*groundwater.AreaSummary, []*groundwater.StationLevel, error)
}

// StationAlertLister lists open alerts for a station.
type StationAlertLister interface {
	ListForStation(ctx context.Context, stationID string, limit int) ([]*alert.Alert, error)
}

// StationHandlerConfig holds dependencies for StationHandler.
type StationHandlerConfig struct {
	Stations StationService

	// Alerts is optional; without it station alert listings are empty.
	Alerts StationAlertLister

	Logger zerolog.Logger
}

// StationHandler handles DWLR station endpoints.
type StationHandler struct {
	stations StationService
	alerts   StationAlertLister
	logger   zerolog.Logger
}

// NewStationHandler creates a new StationHandler.
func NewStationHandler(cfg StationHandlerConfig) *StationHandler {
	return &StationHandler{
		stations: cfg.Stations,
		alerts:   cfg.Alerts,
		logger:   cfg.Logger,
	}
}

// ListNearest handles GET /v1/stations - stations nearest a point.
func (h *StationHandler) ListNearest(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r)
	lat := q.floatParam("lat", true, 0, -90, 90)
	lon := q.floatParam("lon", true, 0, -180, 180)
	limit := q.intParam("limit", groundwater.DefaultStationLimit, 1, MaxStationsLimit)
	if q.writeErrors(w, r) {
		return
	}

	levels, err := h.stations.NearestStations(r.Context(), geo.Point{Lat: lat, Lon: lon}, limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	resp := models.PagedStations{
		Items: make([]models.Station, 0, len(levels)),
		Meta:  models.PagedResponseMeta{Limit: limit, Count: len(levels)},
	}
	for _, l := range levels {
		resp.Items = append(resp.Items, toStation(l, true))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// Get handles GET /v1/stations/{stationId}, including the station's health
// score and recharge.
func (h *StationHandler) Get(w http.ResponseWriter, r *http.Request) {
	insights, err := h.stations.StationInsights(r.Context(), chi.URLParam(r, "stationId"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toStationInsights(insights))
}

// Summary handles GET /v1/stations/summary - analytics over the stations
// near a point.
func (h *StationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r)
	lat := q.floatParam("lat", true, 0, -90, 90)
	lon := q.floatParam("lon", true, 0, -180, 180)
	if q.writeErrors(w, r) {
		return
	}

	p := geo.Point{Lat: lat, Lon: lon}
	summary, nearby, err := h.stations.AreaSummary(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toAreaSummary(p, summary, nearby))
}

// ListAlerts handles GET /v1/stations/{stationId}/alerts - open alerts for a
// station.
func (h *StationHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "stationId")

	q := newQueryParser(r)
	limit := q.intParam("limit", alert.DefaultStationListLimit, 1, MaxAlertLimit)
	if q.writeErrors(w, r) {
		return
	}

	if _, err := h.stations.GetStation(r.Context(), stationID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var alerts []*alert.Alert
	if h.alerts != nil {
		var err error
		alerts, err = h.alerts.ListForStation(r.Context(), stationID, limit)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
	}
	response.JSON(w, r, http.StatusOK, toAlerts(alerts, limit))
}
