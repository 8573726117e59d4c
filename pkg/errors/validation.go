package errors

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MaxInterpolationOrder is the highest spline order supported by the
// volume sampler.
const MaxInterpolationOrder = 5

// ValidatePoints checks an ordered point sequence used as an edge path or
// spline input. The rules are:
//   - at least min points
//   - every coordinate is finite (no NaN or Inf)
func ValidatePoints(points []r3.Vec, min int) error {
	if len(points) < min {
		return New(ErrCodeInvalidPath, "need at least %d points, got %d", min, len(points))
	}
	for i, p := range points {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return New(ErrCodeInvalidPath, "point %d is not finite: %v", i, p)
		}
	}
	return nil
}

// ValidateShape checks that every extent of a grid or volume shape is
// strictly positive.
func ValidateShape(shape ...int) error {
	if len(shape) == 0 {
		return New(ErrCodeInvalidInput, "shape cannot be empty")
	}
	for i, n := range shape {
		if n <= 0 {
			return New(ErrCodeInvalidInput, "shape axis %d must be positive, got %d", i, n)
		}
	}
	return nil
}

// ValidateSpacing checks that grid spacings are finite. Zero and negative
// spacings are allowed (they collapse or mirror the lattice).
func ValidateSpacing(spacing ...float64) error {
	for i, s := range spacing {
		if !finite(s) {
			return New(ErrCodeInvalidInput, "spacing axis %d is not finite", i)
		}
	}
	return nil
}

// ValidateOrder checks a spline interpolation order.
func ValidateOrder(order int) error {
	if order < 0 || order > MaxInterpolationOrder {
		return New(ErrCodeInvalidOption, "interpolation order must be in [0, %d], got %d", MaxInterpolationOrder, order)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
