package alert

import (
	"fmt"

	"github.com/groundwatch/groundwatch/internal/groundwater"
	"github.com/groundwatch/groundwatch/internal/interpolation"
)

// RapidDeclinePercent is the rise in depth to water, relative to the
// previous reading, at which RAPID_DECLINE fires.
const RapidDeclinePercent = 10.0

// Evaluate returns the alerts raised by reading. previous is the station's
// reading before it and may be nil. IDs are left empty.
//
// At most one alert per type is returned. CRITICAL_LEVEL replaces
// LOW_LEVEL_WARNING.
func Evaluate(reading *groundwater.Reading, previous *groundwater.Reading) []*Alert {
	if reading == nil {
		return nil
	}

	var alerts []*Alert
	newAlert := func(t Type, severity Severity, message string) {
		alerts = append(alerts, &Alert{
			StationID:   reading.StationID,
			Type:        t,
			Severity:    severity,
			Message:     message,
			WaterLevel:  reading.Level,
			TriggeredAt: reading.MeasuredAt,
		})
	}

	switch groundwater.ClassifyLevel(reading.Level) {
	case groundwater.StatusCritical:
		newAlert(TypeCriticalLevel, SeverityHigh, fmt.Sprintf(
			"Water level %.2f m below ground exceeds the critical depth of %.1f m",
			reading.Level, groundwater.CriticalLevel))
	case groundwater.StatusSemiCritical:
		newAlert(TypeLowLevelWarning, SeverityLow, fmt.Sprintf(
			"Water level %.2f m below ground is in the semi-critical band",
			reading.Level))
	}

	if previous != nil && previous.MeasuredAt.Before(reading.MeasuredAt) {
		trend := interpolation.TrendPercent(reading.Level, previous.Level)
		if trend >= RapidDeclinePercent {
			newAlert(TypeRapidDecline, SeverityMedium, fmt.Sprintf(
				"Water table dropped %.1f%% since the previous reading (%.2f m to %.2f m)",
				trend, previous.Level, reading.Level))
		}
	}

	return alerts
}
