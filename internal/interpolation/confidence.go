package interpolation

// Confidence is a qualitative rating of how trustworthy an estimate is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Confidence thresholds.
const (
	HighConfidenceMaxDistanceKm   = 5.0
	HighConfidenceMinStations     = 5
	MediumConfidenceMaxDistanceKm = 15.0
	MediumConfidenceMinStations   = 3
)

// Classify rates an estimate by the distance to its nearest station and the
// number of stations behind it. Rules are checked in order; the first match
// wins.
func Classify(nearestDistanceKm float64, stationCount int) Confidence {
	if nearestDistanceKm < HighConfidenceMaxDistanceKm && stationCount >= HighConfidenceMinStations {
		return ConfidenceHigh
	}
	if nearestDistanceKm < MediumConfidenceMaxDistanceKm && stationCount >= MediumConfidenceMinStations {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// Confidences returns every confidence level, best first.
func Confidences() []Confidence {
	return []Confidence{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}
}
