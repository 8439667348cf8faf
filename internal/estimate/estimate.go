// Package estimate implements PERT three-point estimation.
package estimate

import (
	"errors"
	"math"
)

// DefaultIncrement is the rounding step applied to expected hours when a
// job does not override it.
const DefaultIncrement = 0.5

// ErrInvalidIncrement is returned for a non-positive rounding increment.
var ErrInvalidIncrement = errors.New("rounding increment must be positive")

// Expected computes the PERT weighted estimate (o + 4m + p) / 6 rounded
// half-up to the given increment.
func Expected(optimistic, mostLikely, pessimistic, increment float64) (float64, error) {
	if increment <= 0 {
		return 0, ErrInvalidIncrement
	}
	raw := (optimistic + 4*mostLikely + pessimistic) / 6
	return RoundToIncrement(raw, increment), nil
}

// RoundToIncrement rounds value half-up at the increment granularity and
// normalizes the result to two decimal places for display stability.
func RoundToIncrement(value, increment float64) float64 {
	rounded := math.Floor(value/increment+0.5) * increment
	return RoundHours(rounded)
}

// RoundHours rounds to two decimal places.
func RoundHours(value float64) float64 {
	return math.Round(value*100) / 100
}
