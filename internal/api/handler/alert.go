package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/alert"
	"github.com/groundwatch/groundwatch/internal/api/response"
)

// AlertService lists and acknowledges alerts.
type AlertService interface {
	List(ctx context.Context, limit int, onlyUnacknowledged bool) ([]*alert.Alert, error)
	Acknowledge(ctx context.Context, id string) error
}

// AlertHandler handles groundwater alert endpoints.
type AlertHandler struct {
	service AlertService
	logger  zerolog.Logger
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(service AlertService, logger zerolog.Logger) *AlertHandler {
	return &AlertHandler{service: service, logger: logger}
}

// List handles GET /v1/alerts. Only open alerts are listed unless the
// request sets unacknowledged=false.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r)
	limit := q.intParam("limit", alert.DefaultListLimit, 1, MaxAlertLimit)
	unacknowledged := q.boolParam("unacknowledged", true)
	if q.writeErrors(w, r) {
		return
	}

	alerts, err := h.service.List(r.Context(), limit, unacknowledged)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toAlerts(alerts, limit))
}

// Acknowledge handles POST /v1/alerts/{alertId}/acknowledge.
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Acknowledge(r.Context(), chi.URLParam(r, "alertId")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.NoContent(w, r)
}
