package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/api/response"
	"github.com/groundwatch/groundwatch/internal/groundwater"
)

// DistrictLister lists the latest district summaries written by the refresh
// job.
type DistrictLister interface {
	DistrictSummaries(ctx context.Context) ([]*groundwater.DistrictSummary, error)
}

// DistrictHandler handles district summary endpoints.
type DistrictHandler struct {
	districts DistrictLister
	logger    zerolog.Logger
}

// NewDistrictHandler creates a new DistrictHandler.
func NewDistrictHandler(districts DistrictLister, logger zerolog.Logger) *DistrictHandler {
	return &DistrictHandler{districts: districts, logger: logger}
}

// List handles GET /v1/districts.
func (h *DistrictHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.districts.DistrictSummaries(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toDistricts(summaries))
}
