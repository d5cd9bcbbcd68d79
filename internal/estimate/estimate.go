// Package estimate converts walking distances and durations into the step
// and time figures shown to the walker.
//
// Two estimates coexist on purpose. Precise figures (StepsFromDistance,
// MinutesFromDuration) are used once the routing provider has returned a
// real distance and duration. Quick figures assume a fixed walking speed and
// are used to preview a landmark detour before a route is recomputed.
package estimate

import "math"

const (
	// StrideMeters is the average stride length.
	StrideMeters = 0.75

	// WalkingSpeedKmh is the walking speed assumed by Quick.
	WalkingSpeedKmh = 5.0
)

// StepsFromDistance returns the number of strides needed to cover meters.
func StepsFromDistance(meters float64) int {
	if meters <= 0 {
		return 0
	}
	return int(math.Round(meters / StrideMeters))
}

// DistanceFromSteps returns the distance covered by the given number of steps, in whole meters.
func DistanceFromSteps(steps int) int {
	if steps <= 0 {
		return 0
	}
	return int(math.Round(float64(steps) * StrideMeters))
}

// MinutesFromDuration returns the walking time in whole minutes, rounded up.
func MinutesFromDuration(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Ceil(seconds / 60))
}

// QuickEstimate is the speed-based estimate used for landmark previews.
type QuickEstimate struct {
	Meters  float64 `json:"meters"`
	Km      float64 `json:"km"`
	Steps   int     `json:"steps"`
	Minutes int     `json:"minutes"`
}

// Quick derives a preview estimate from an approximate added-walk length.
func Quick(lengthMeters float64) QuickEstimate {
	km := lengthMeters / 1000
	return QuickEstimate{
		Meters:  lengthMeters,
		Km:      km,
		Steps:   StepsFromDistance(lengthMeters),
		Minutes: int(math.Round(km * 60 / WalkingSpeedKmh)),
	}
}

// Precise is the estimate derived from a computed route.
type Precise struct {
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
	Steps           int     `json:"steps"`
	Minutes         int     `json:"minutes"`
}

// FromRoute derives the precise estimate for a computed route.
func FromRoute(distanceMeters, durationSeconds float64) Precise {
	return Precise{
		DistanceMeters:  distanceMeters,
		DurationSeconds: durationSeconds,
		Steps:           StepsFromDistance(distanceMeters),
		Minutes:         MinutesFromDuration(durationSeconds),
	}
}
