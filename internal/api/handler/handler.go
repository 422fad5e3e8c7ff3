// Package handler provides HTTP handlers for the groundwatch API.
package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/groundwatch/groundwatch/internal/alert"
	"github.com/groundwatch/groundwatch/internal/api/models"
	"github.com/groundwatch/groundwatch/internal/api/response"
	"github.com/groundwatch/groundwatch/internal/groundwater"
)

// Query parameter bounds.
const (
	MaxStationsLimit = 50
	MaxPower         = 10.0
	MaxBatchPoints   = 100
	MaxIntervalKm    = 100.0
	MinIntervalKm    = 0.1
	DefaultInterval  = 1.0
	MaxAlertLimit    = alert.MaxListLimit
)

// queryParser collects field errors while reading query parameters.
type queryParser struct {
	values url.Values
	errs   []models.FieldError
}

func newQueryParser(r *http.Request) *queryParser {
	return &queryParser{values: r.URL.Query()}
}

func (p *queryParser) fail(field, message, code string) {
	p.errs = append(p.errs, models.FieldError{Field: field, Message: message, Code: code})
}

// floatParam reads a float in [min, max]. Absent values return def unless
// required.
func (p *queryParser) floatParam(name string, required bool, def, min, max float64) float64 {
	raw := p.values.Get(name)
	if raw == "" {
		if required {
			p.fail(name, "is required", models.CodeRequired)
		}
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		p.fail(name, "must be a number", models.CodeInvalid)
		return def
	}
	if v < min || v > max {
		p.fail(name, fmt.Sprintf("must be between %g and %g", min, max), models.CodeOutOfRange)
		return def
	}
	return v
}

// intParam reads an optional integer in [min, max].
func (p *queryParser) intParam(name string, def, min, max int) int {
	raw := p.values.Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, "must be an integer", models.CodeInvalid)
		return def
	}
	if v < min || v > max {
		p.fail(name, fmt.Sprintf("must be between %d and %d", min, max), models.CodeOutOfRange)
		return def
	}
	return v
}

// power reads the optional IDW power, which must be positive.
func (p *queryParser) power() float64 {
	raw := p.values.Get("power")
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		p.fail("power", "must be a number", models.CodeInvalid)
		return 0
	}
	if v <= 0 || v > MaxPower {
		p.fail("power", fmt.Sprintf("must be greater than 0 and at most %g", MaxPower), models.CodeOutOfRange)
		return 0
	}
	return v
}

func (p *queryParser) boolParam(name string, def bool) bool {
	raw := p.values.Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(name, "must be true or false", models.CodeInvalid)
		return def
	}
	return v
}

// writeErrors writes a 400 problem if any field failed and reports whether
// it did.
func (p *queryParser) writeErrors(w http.ResponseWriter, r *http.Request) bool {
	if len(p.errs) == 0 {
		return false
	}
	response.BadRequest(w, r, "invalid query parameters", p.errs)
	return true
}

// writeServiceError maps service errors onto problem responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, groundwater.ErrStationNotFound):
		response.NotFound(w, r, "station not found")
	case errors.Is(err, alert.ErrAlertNotFound):
		response.NotFound(w, r, "alert not found")
	case errors.Is(err, groundwater.ErrNoReadings):
		response.Unprocessable(w, r, "no station readings are available to estimate from")
	case errors.Is(err, groundwater.ErrProviderUnavailable):
		response.ServiceUnavailable(w, r, "groundwater data is temporarily unavailable")
	case errors.Is(err, groundwater.ErrInvalidTransect):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "polyline", Message: "must be a valid encoded polyline", Code: models.CodeInvalid},
		})
	case errors.Is(err, groundwater.ErrTransectTooLong), errors.Is(err, groundwater.ErrTooManyPoints):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
