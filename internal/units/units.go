// Package units provides shared constants and conversion for the linear
// distance units used by survey vendors. The pipeline and the database
// work exclusively in feet; ingestion converts on the way in.
package units

// Distance unit constants
const (
	Feet       = "ft"
	Metres     = "m"
	Kilometres = "km"
	Miles      = "mi"
)

// ValidDistanceUnits contains all accepted distance unit values
var ValidDistanceUnits = []string{Feet, Metres, Kilometres, Miles}

// IsValidDistance checks if the given unit is an accepted distance unit
func IsValidDistance(unit string) bool {
	for _, valid := range ValidDistanceUnits {
		if unit == valid {
			return true
		}
	}
	return false
}

// ValidDistanceUnitsString returns a comma-separated list of accepted
// units for error messages
func ValidDistanceUnitsString() string {
	return "ft, m, km, mi"
}

// ToFeet converts a distance in the given unit to feet, the canonical
// unit stored in the database and used throughout the pipeline
func ToFeet(value float64, unit string) float64 {
	switch unit {
	case Metres:
		return value * 3.28084
	case Kilometres:
		return value * 3280.84
	case Miles:
		return value * 5280
	case Feet:
		return value
	default:
		return value // default to feet if unknown unit
	}
}
