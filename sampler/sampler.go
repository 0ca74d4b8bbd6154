// Package sampler implements the bounded rejection sampler used to draw
// imputed values that are compatible with the substantive model.
//
// A proposal is drawn from a simple conditional distribution and accepted
// with probability equal to a weight in [0, 1], the target density
// divided by the proposal density and normalized by its upper bound.
// Accepted values are then draws from the target distribution.
package sampler

import (
	"errors"
	"fmt"
	"math"
)

// DefaultMaxDraws is the default limit on the number of proposals drawn
// for one value.
const DefaultMaxDraws = 1000

// ErrRejected is returned when every proposal was rejected.
var ErrRejected = errors.New("rejection limit reached")

// Uniform returns a uniform draw from [0, 1).
type Uniform func() float64

// Result is an accepted value and the number of proposals drawn to
// obtain it, including the accepted one.
type Result struct {
	Value    float64
	Attempts int
}

// clamp maps a weight into [0, 1]: NaN and negative weights are 0.
func clamp(w float64) float64 {
	switch {
	case math.IsNaN(w) || w < 0:
		return 0
	case w > 1:
		return 1
	default:
		return w
	}
}

// Sample draws proposals until one is accepted, or until maxDraws
// proposals were rejected.  A proposal x is accepted when u() < weight(x).
// If maxDraws is not positive, DefaultMaxDraws is used.  On failure the
// returned Result carries the number of attempts and the error wraps
// ErrRejected.
func Sample(propose func() float64, weight func(float64) float64, maxDraws int, u Uniform) (Result, error) {

	if maxDraws <= 0 {
		maxDraws = DefaultMaxDraws
	}

	var attempts int
	for attempts < maxDraws {
		attempts++
		x := propose()
		w := clamp(weight(x))
		if w > 0 && u() < w {
			return Result{Value: x, Attempts: attempts}, nil
		}
	}

	return Result{Value: math.NaN(), Attempts: attempts},
		fmt.Errorf("%w after %d proposals", ErrRejected, attempts)
}

// Categorical returns an index drawn with probability proportional to
// the given non-negative weights, using the uniform value u.  Weights
// that are NaN or negative are treated as 0.  An error wrapping
// ErrRejected is returned if all weights are zero.
func Categorical(weights []float64, u float64) (int, error) {

	var tot float64
	for _, w := range weights {
		if !math.IsNaN(w) && w > 0 {
			tot += w
		}
	}

	if tot <= 0 || math.IsInf(tot, 1) {
		return -1, fmt.Errorf("%w: no level has positive weight", ErrRejected)
	}

	t := u * tot
	var cum float64
	last := -1
	for k, w := range weights {
		if math.IsNaN(w) || w <= 0 {
			continue
		}
		cum += w
		last = k
		if t < cum {
			return k, nil
		}
	}

	// u*tot rounded up to tot
	return last, nil
}
