package handler

import (
	"math"
	"time"

	"github.com/groundwatch/groundwatch/internal/alert"
	"github.com/groundwatch/groundwatch/internal/api/models"
	"github.com/groundwatch/groundwatch/internal/geo"
	"github.com/groundwatch/groundwatch/internal/groundwater"
)

func toEstimate(e *groundwater.LiveEstimate) *models.Estimate {
	if e == nil {
		return nil
	}
	out := &models.Estimate{
		Point:            models.Point{Lat: e.Point.Lat, Lon: e.Point.Lon},
		Level:            e.Value,
		Unit:             models.LevelUnit,
		Status:           string(e.Status),
		Confidence:       string(e.Confidence),
		StationsUsed:     e.StationsUsed,
		NearestStationKm: e.NearestDistanceKm,
		Fallback:         e.Fallback,
		TrendPercent:     e.TrendPercent,
		PreviousLevel:    e.PreviousValue,
		SnapshotAt:       models.Timestamp(e.SnapshotAt),
	}
	for _, c := range e.Contributions {
		out.Contributions = append(out.Contributions, models.Contribution{
			StationID:  c.StationID,
			DistanceKm: c.DistanceKm,
			Level:      c.Value,
			Weight:     c.Weight,
		})
	}
	return out
}

func toStation(l *groundwater.StationLevel, withDistance bool) models.Station {
	s := l.Station
	out := models.Station{
		StationID: s.ID,
		Name:      s.Name,
		District:  s.District,
		State:     s.State,
		Status:    string(l.Status),
		UpdatedAt: models.TimestampPtr(s.UpdatedAt),
	}
	if s.HasValidLocation() {
		out.Point = &models.Point{Lat: s.Lat, Lon: s.Lon}
	}
	if l.Latest != nil {
		out.Latest = &models.Reading{
			Level:      l.Latest.Level,
			Unit:       models.LevelUnit,
			MeasuredAt: models.Timestamp(l.Latest.MeasuredAt),
		}
	}
	if withDistance {
		d := l.DistanceKm
		out.DistanceKm = &d
	}
	return out
}

func toStationInsights(in *groundwater.StationInsights) models.Station {
	out := toStation(in.StationLevel, false)
	score := in.HealthScore
	out.HealthScore = &score

	recharge := &models.Recharge{
		SpecificYield: in.SpecificYield,
		TotalMm:       round2(in.RechargeTotalMM),
		Readings:      len(in.Readings),
		Events:        make([]models.RechargeEvent, 0, len(in.Recharge)),
	}
	for _, e := range in.Recharge {
		recharge.Events = append(recharge.Events, models.RechargeEvent{
			Date:     e.Date.Format(time.DateOnly),
			RiseM:    round2(e.RiseM),
			AmountMm: round2(e.AmountMM),
		})
	}
	out.Recharge = recharge
	return out
}

func toAreaSummary(p geo.Point, summary *groundwater.AreaSummary, nearby []*groundwater.StationLevel) models.AreaSummary {
	out := models.AreaSummary{
		Point:              models.Point{Lat: p.Lat, Lon: p.Lon},
		StationCount:       summary.StationCount,
		MeanLevel:          round2(summary.MeanLevel),
		Unit:               models.LevelUnit,
		RechargingStations: summary.RechargingStations,
		CriticalStations:   summary.CriticalStations,
		Stations:           make([]models.Station, 0, len(nearby)),
	}
	for _, l := range nearby {
		out.Stations = append(out.Stations, toStation(l, true))
	}
	return out
}

func toDistricts(summaries []*groundwater.DistrictSummary) models.Districts {
	items := make([]models.District, 0, len(summaries))
	for _, d := range summaries {
		items = append(items, models.District{
			District:    d.District,
			State:       d.State,
			Points:      d.Points,
			MeanLevel:   round2(d.MeanLevel),
			Unit:        models.LevelUnit,
			WorstStatus: string(d.WorstStatus),
			ComputedAt:  models.Timestamp(d.ComputedAt),
		})
	}
	return models.Districts{Items: items}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toAlerts(alerts []*alert.Alert, limit int) models.PagedAlerts {
	items := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		items = append(items, models.Alert{
			ID:           a.ID,
			StationID:    a.StationID,
			Type:         string(a.Type),
			Severity:     string(a.Severity),
			Message:      a.Message,
			WaterLevel:   a.WaterLevel,
			TriggeredAt:  models.Timestamp(a.TriggeredAt),
			Acknowledged: a.Acknowledged,
		})
	}
	return models.PagedAlerts{
		Items: items,
		Meta:  models.PagedResponseMeta{Limit: limit, Count: len(items)},
	}
}
