package groundwater

import (
	"sort"
	"time"
)

// DefaultSpecificYield is used for stations with no aquifer specific yield on
// record. It suits the alluvial aquifers most DWLR stations sit in.
const DefaultSpecificYield = 0.15

// Health score weights, out of 100.
const (
	healthBase             = 50
	healthStatusSafe       = 40
	healthStatusSemi       = 20
	healthTrendRising      = 30
	healthTrendSlightDecay = 15

	// slightDeclineM is the largest fall in metres still scored as slight.
	slightDeclineM = 0.5
)

// RechargeEvent is a rise of the water table between two consecutive
// readings.
type RechargeEvent struct {
	// Date is the UTC day of the later reading.
	Date time.Time

	// RiseM is how far the depth to water fell, in metres.
	RiseM float64

	// AmountMM is the recharge in millimetres of water.
	AmountMM float64
}

// RechargeEvents estimates recharge with the water table fluctuation method,
// R = Sy × Δh. Every rise between consecutive readings is one event of
// specificYield × rise × 1000 mm. Level is depth below ground, so a rise is
// a decrease in Level. Readings may be in any order; non-finite levels are
// skipped. A non-positive specificYield takes DefaultSpecificYield.
func RechargeEvents(readings []*Reading, specificYield float64) []RechargeEvent {
	if specificYield <= 0 {
		specificYield = DefaultSpecificYield
	}

	sorted := chronological(readings)
	var events []RechargeEvent
	for i := 1; i < len(sorted); i++ {
		rise := sorted[i-1].Level - sorted[i].Level
		if rise <= 0 {
			continue
		}
		at := sorted[i].MeasuredAt.UTC()
		events = append(events, RechargeEvent{
			Date:     time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC),
			RiseM:    rise,
			AmountMM: specificYield * rise * 1000,
		})
	}
	return events
}

// TotalRechargeMM sums the recharge of events.
func TotalRechargeMM(events []RechargeEvent) float64 {
	total := 0.0
	for _, e := range events {
		total += e.AmountMM
	}
	return total
}

// HealthScore rates a station from 0 to 100. It starts at 50, adds 40 for a
// safe status or 20 for semi-critical, then adds 30 if the water table rose
// between the oldest and newest reading or 15 if it fell by less than half a
// metre. Fewer than two usable readings add nothing for the trend.
func HealthScore(status Status, readings []*Reading) int {
	score := healthBase

	switch status {
	case StatusSafe:
		score += healthStatusSafe
	case StatusSemiCritical:
		score += healthStatusSemi
	}

	if sorted := chronological(readings); len(sorted) >= 2 {
		rise := sorted[0].Level - sorted[len(sorted)-1].Level
		switch {
		case rise > 0:
			score += healthTrendRising
		case rise > -slightDeclineM:
			score += healthTrendSlightDecay
		}
	}

	return min(max(score, 0), 100)
}

// AreaSummary aggregates the stations around a point.
type AreaSummary struct {
	StationCount int

	// MeanLevel is the mean latest level of stations with a reading, in
	// metres below ground. Zero when none has one.
	MeanLevel float64

	// RechargingStations counts stations whose latest reading is shallower
	// than their previous one.
	RechargingStations int

	CriticalStations int
}

// SummarizeArea aggregates levels.
func SummarizeArea(levels []*StationLevel) AreaSummary {
	summary := AreaSummary{StationCount: len(levels)}

	sum, n := 0.0, 0
	for _, l := range levels {
		if l.Latest != nil && finite(l.Latest.Level) {
			sum += l.Latest.Level
			n++
			if l.Previous != nil && finite(l.Previous.Level) && l.Latest.Level < l.Previous.Level {
				summary.RechargingStations++
			}
		}
		if l.Status == StatusCritical {
			summary.CriticalStations++
		}
	}
	if n > 0 {
		summary.MeanLevel = sum / float64(n)
	}
	return summary
}

// chronological returns the readings with finite levels, oldest first.
func chronological(readings []*Reading) []*Reading {
	out := make([]*Reading, 0, len(readings))
	for _, r := range readings {
		if r != nil && finite(r.Level) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].MeasuredAt.Before(out[b].MeasuredAt)
	})
	return out
}
