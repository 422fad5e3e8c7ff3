// Package alert derives groundwater alerts from station readings and keeps
// track of their acknowledgement.
package alert

import (
	"errors"
	"time"
)

// ErrAlertNotFound is returned when an alert does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// Type identifies the rule that raised an alert.
type Type string

const (
	TypeCriticalLevel   Type = "CRITICAL_LEVEL"
	TypeRapidDecline    Type = "RAPID_DECLINE"
	TypeLowLevelWarning Type = "LOW_LEVEL_WARNING"
)

// Types returns every alert type.
func Types() []Type {
	return []Type{TypeCriticalLevel, TypeRapidDecline, TypeLowLevelWarning}
}

// Severity of an alert.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Severities returns every severity, most severe first.
func Severities() []Severity {
	return []Severity{SeverityHigh, SeverityMedium, SeverityLow}
}

// Alert is a groundwater condition raised for a station.
type Alert struct {
	ID        string
	StationID string
	Type      Type
	Severity  Severity
	Message   string

	// WaterLevel is the reading that raised the alert, in metres below ground.
	WaterLevel float64

	TriggeredAt  time.Time
	Acknowledged bool
}

// ListOptions filters alert listings.
type ListOptions struct {
	// Limit caps the number of alerts returned.
	Limit int

	// StationID restricts results to one station when set.
	StationID string

	// OnlyUnacknowledged hides acknowledged alerts.
	OnlyUnacknowledged bool
}
