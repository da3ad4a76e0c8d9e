// v0
// internal/wbgt/wbgt.go
package wbgt

import "math"

// DefaultHumidity is used when no humidity sensor reading is available. It is an
// approximation, not a measurement.
const DefaultHumidity = 40.0

// EstimateWetBulb approximates the wet-bulb temperature (°C) from dry-bulb temperature
// and relative humidity (%) using Stull (2011).
func EstimateWetBulb(tempC, rh float64) float64 {
	return tempC*math.Atan(0.151977*math.Sqrt(rh+8.313659)) +
		math.Atan(tempC+rh) -
		math.Atan(rh-1.676331) +
		0.00391838*math.Pow(rh, 1.5)*math.Atan(0.023101*rh) -
		4.686035
}

// Compute returns the indoor WBGT estimate 0.7*Twb + 0.3*T.
func Compute(tempC, rh float64) float64 {
	return 0.7*EstimateWetBulb(tempC, rh) + 0.3*tempC
}
