package groundwater

// Status classifies a water level for farmers.
type Status string

const (
	StatusSafe         Status = "safe"
	StatusSemiCritical Status = "semi_critical"
	StatusCritical     Status = "critical"
)

// Level thresholds in metres below ground level.
const (
	SemiCriticalLevel = 2.5
	CriticalLevel     = 5.0
)

// ClassifyLevel maps a depth to water onto a status: deeper than 5m is
// critical, 2.5m to 5m inclusive is semi-critical, shallower is safe.
func ClassifyLevel(level float64) Status {
	switch {
	case level > CriticalLevel:
		return StatusCritical
	case level >= SemiCriticalLevel:
		return StatusSemiCritical
	default:
		return StatusSafe
	}
}

// Statuses returns every status, best first.
func Statuses() []Status {
	return []Status{StatusSafe, StatusSemiCritical, StatusCritical}
}
