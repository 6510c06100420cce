// Package units provides shared constants and conversions for sonar angles and ranges
package units

import "math"

// Angle and range constants for the scanning head protocol
const (
	// HeadingUnitsPerTurn is the number of angle units (1/16th of a gradian)
	// in one full rotation.
	HeadingUnitsPerTurn = 6400

	// HeadingUnitsPerGradian is the number of angle units per gradian.
	HeadingUnitsPerGradian = 16

	// DecimetersPerMeter converts the head's decimeter range field.
	DecimetersPerMeter = 10
)

// SonarAngleToRad converts an angle in units of 1/16th of a gradian to radians.
// 6400 units = one full turn = 2*pi.
func SonarAngleToRad(units int) float64 {
	return float64(units) * math.Pi / (HeadingUnitsPerTurn / 2)
}

// WrapHeading normalizes an angle in heading units onto [0, HeadingUnitsPerTurn).
// Negative inputs wrap upward, matching modular sweep arithmetic.
func WrapHeading(units int) int {
	wrapped := units % HeadingUnitsPerTurn
	if wrapped < 0 {
		wrapped += HeadingUnitsPerTurn
	}
	return wrapped
}

// DecimetersToMeters converts a range reported in decimeters to meters.
// The head reports ranges in decimeters; everything downstream works in meters.
func DecimetersToMeters(dm float64) float64 {
	return dm / DecimetersPerMeter
}
