package spline

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
)

// FrameMethod selects how moving frames are generated along a curve.
type FrameMethod string

const (
	// FrameBishop transports an initial normal along the curve without
	// rotating it about the tangent (rotation minimizing frame). It stays
	// continuous through inflection points and straight stretches.
	FrameBishop FrameMethod = "bishop"

	// FrameFrenet uses the curvature direction as first normal. It is
	// undefined where the curvature vanishes and flips at inflections.
	FrameFrenet FrameMethod = "frenet"
)

// ParseFrameMethod converts a method name into a FrameMethod.
// The empty string selects FrameBishop.
func ParseFrameMethod(name string) (FrameMethod, error) {
	switch FrameMethod(name) {
	case "", FrameBishop:
		return FrameBishop, nil
	case FrameFrenet:
		return FrameFrenet, nil
	}
	return "", errors.New(errors.ErrCodeInvalidOption, "unknown moving frame method %q", name)
}

// Frame is an orthonormal right-handed frame: unit tangent followed by two
// normals.
type Frame [3]r3.Vec

// Tangent returns the first axis.
func (f Frame) Tangent() r3.Vec { return f[0] }

// Normal returns the second axis.
func (f Frame) Normal() r3.Vec { return f[1] }

// Binormal returns the third axis.
func (f Frame) Binormal() r3.Vec { return f[2] }

// transportStep bounds the parameter distance between two transport steps.
const transportStep = 1.0 / 16

// MovingFrame returns one frame per normalized arc-length position, in the
// order of positions. The first axis of every frame is the unit tangent.
//
// With FrameBishop the frame is transported from the start of the curve, so
// the frame at a given position does not depend on which other positions are
// queried.
func (s *B3Spline) MovingFrame(positions []float64, method FrameMethod, atol float64) ([]Frame, error) {
	ts, err := s.Parameters(positions, atol)
	if err != nil {
		return nil, err
	}
	switch method {
	case "", FrameBishop:
		return s.bishopFrames(ts)
	case FrameFrenet:
		return s.frenetFrames(ts)
	}
	return nil, errors.New(errors.ErrCodeInvalidOption, "unknown moving frame method %q", method)
}

func (s *B3Spline) unitTangent(t float64) (r3.Vec, error) {
	d := s.EvalParam(t, 1)
	n := r3.Norm(d)
	if s.negligible(n) {
		return r3.Vec{}, errors.New(errors.ErrCodeDegenerateCurve, "tangent vanishes at t=%g", t)
	}
	return r3.Scale(1/n, d), nil
}

func (s *B3Spline) frenetFrames(ts []float64) ([]Frame, error) {
	frames := make([]Frame, len(ts))
	for i, t := range ts {
		tangent, err := s.unitTangent(t)
		if err != nil {
			return nil, err
		}
		acc := s.EvalParam(t, 2)
		normal := r3.Sub(acc, r3.Scale(r3.Dot(acc, tangent), tangent))
		n := r3.Norm(normal)
		if n < 1e-12 {
			return nil, errors.New(errors.ErrCodeDegenerateCurve, "curvature vanishes at t=%g; use the bishop frame", t)
		}
		normal = r3.Scale(1/n, normal)
		frames[i] = Frame{tangent, normal, r3.Cross(tangent, normal)}
	}
	return frames, nil
}

// bishopFrames walks the curve in increasing parameter order with the
// double reflection method, sub-stepping so no step exceeds transportStep.
func (s *B3Spline) bishopFrames(ts []float64) ([]Frame, error) {
	if len(ts) == 0 {
		return nil, nil
	}
	order := make([]int, len(ts))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case ts[a] < ts[b]:
			return -1
		case ts[a] > ts[b]:
			return 1
		}
		return 0
	})

	t := math.Min(0, ts[order[0]])
	x := s.EvalParam(t, 0)
	tangent, err := s.unitTangent(t)
	if err != nil {
		return nil, err
	}
	normal := initialNormal(tangent)

	frames := make([]Frame, len(ts))
	for _, idx := range order {
		target := ts[idx]
		steps := int(math.Ceil((target - t) / transportStep))
		for k := 1; k <= steps; k++ {
			next := t + (target-t)*float64(k)/float64(steps)
			if k == steps {
				next = target
			}
			nx := s.EvalParam(next, 0)
			nt, err := s.unitTangent(next)
			if err != nil {
				return nil, err
			}
			normal = reflect(x, nx, tangent, nt, normal)
			x, tangent = nx, nt
		}
		t = target
		frames[idx] = Frame{tangent, normal, r3.Cross(tangent, normal)}
	}
	return frames, nil
}

// reflect transports normal from (x0, t0) to (x1, t1) by two reflections
// (Wang et al., "Computation of rotation minimizing frames", 2008).
func reflect(x0, x1, t0, t1, normal r3.Vec) r3.Vec {
	rl, tl := normal, t0
	v1 := r3.Sub(x1, x0)
	if c1 := r3.Dot(v1, v1); c1 > 0 {
		rl = r3.Sub(normal, r3.Scale(2/c1*r3.Dot(v1, normal), v1))
		tl = r3.Sub(t0, r3.Scale(2/c1*r3.Dot(v1, t0), v1))
	}
	out := rl
	v2 := r3.Sub(t1, tl)
	if c2 := r3.Dot(v2, v2); c2 > 0 {
		out = r3.Sub(rl, r3.Scale(2/c2*r3.Dot(v2, rl), v2))
	}
	// re-orthonormalize against the new tangent to stop drift
	out = r3.Sub(out, r3.Scale(r3.Dot(out, t1), t1))
	return r3.Unit(out)
}

// initialNormal picks the coordinate axis least aligned with tangent and
// makes it orthogonal to tangent.
func initialNormal(tangent r3.Vec) r3.Vec {
	axes := [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	best := axes[0]
	for _, a := range axes[1:] {
		if math.Abs(r3.Dot(a, tangent)) < math.Abs(r3.Dot(best, tangent)) {
			best = a
		}
	}
	return r3.Unit(r3.Sub(best, r3.Scale(r3.Dot(best, tangent), tangent)))
}
