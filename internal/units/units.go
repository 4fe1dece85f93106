// Package units provides shared radiometric and area unit conversions
package units

import "math"

// SquareMetersPerKm2 is the conversion factor between m² and km².
const SquareMetersPerKm2 = 1e6

// DecibelFromLinear converts a linear-domain power value to decibels.
// Non-positive input has no decibel representation and returns -Inf;
// callers are expected to gate on validity before converting.
func DecibelFromLinear(v float64) float64 {
	return 10 * math.Log10(v)
}

// LinearFromDecibel converts a decibel value back to linear-domain power.
func LinearFromDecibel(db float64) float64 {
	return math.Pow(10, db/10)
}

// AreaKm2 converts a pixel count with a per-pixel ground area in m² to km².
func AreaKm2(pixels int, pixelAreaM2 float64) float64 {
	return float64(pixels) * pixelAreaM2 / SquareMetersPerKm2
}
