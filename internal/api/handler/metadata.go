package handler

import (
	"net/http"

	"github.com/groundwatch/groundwatch/internal/alert"
	"github.com/groundwatch/groundwatch/internal/api/models"
	"github.com/groundwatch/groundwatch/internal/api/response"
	"github.com/groundwatch/groundwatch/internal/groundwater"
	"github.com/groundwatch/groundwatch/internal/interpolation"
)

// MetadataHandler handles metadata endpoints.
type MetadataHandler struct{}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// GetEnums handles GET /v1/metadata/enums - get enum values used by the API.
func (h *MetadataHandler) GetEnums(w http.ResponseWriter, r *http.Request) {
	enums := models.Enums{
		Unit: models.LevelUnit,
		Thresholds: models.Thresholds{
			SemiCriticalLevelM:       groundwater.SemiCriticalLevel,
			CriticalLevelM:           groundwater.CriticalLevel,
			RapidDeclinePercent:      alert.RapidDeclinePercent,
			HighConfidenceKm:         interpolation.HighConfidenceMaxDistanceKm,
			HighConfidenceStations:   interpolation.HighConfidenceMinStations,
			MediumConfidenceKm:       interpolation.MediumConfidenceMaxDistanceKm,
			MediumConfidenceStations: interpolation.MediumConfidenceMinStations,
		},
	}
	for _, s := range groundwater.Statuses() {
		enums.Statuses = append(enums.Statuses, string(s))
	}
	for _, c := range interpolation.Confidences() {
		enums.Confidence = append(enums.Confidence, string(c))
	}
	for _, t := range alert.Types() {
		enums.AlertTypes = append(enums.AlertTypes, string(t))
	}
	for _, s := range alert.Severities() {
		enums.AlertSeverities = append(enums.AlertSeverities, string(s))
	}
	response.JSON(w, r, http.StatusOK, enums)
}
