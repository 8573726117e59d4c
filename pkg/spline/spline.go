package spline

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
)

const (
	// BasisB3 names the cubic B-spline basis.
	BasisB3 = "B3"

	// DefaultKnots is the knot count requested when callers do not choose one.
	DefaultKnots = 4

	// MinKnots is the smallest usable knot count: one cubic segment.
	MinKnots = 2

	// DefaultTolerance is the absolute arc-length tolerance used when
	// converting normalized positions to curve parameters.
	DefaultTolerance = 1e-6
)

const (
	// smoothing weights the second-difference penalty of the fit. It only
	// matters when the data term leaves coefficients undetermined.
	smoothing = 1e-8

	quadPoints    = 16
	maxIterations = 100

	// degenerateTol is the length, relative to the magnitude of the
	// coordinates, below which a curve or tangent counts as zero.
	degenerateTol = 1e-9
)

// Model is the structural description of a spline: basis, knot count,
// closedness and control coefficients. Two splines are equal when their
// models are equal.
type Model struct {
	Basis        string
	KnotCount    int
	Closed       bool
	Coefficients []r3.Vec
}

// B3Spline is an open cubic B-spline curve in 3D.
//
// The curve parameter t runs over [0, KnotCount-1] and the curve has
// KnotCount+2 coefficients. Arc length is computed once when the spline is
// constructed, so repeated evaluation does not integrate the curve again.
//
// A B3Spline is immutable and safe for concurrent use.
type B3Spline struct {
	model      Model
	cumulative []float64 // arc length from t=0 to t=j for each knot j
	scale      float64   // max(1, largest coefficient magnitude)
}

// ClampKnots returns the knot count actually used when fitting nPoints
// points with a requested knot count: min(requested, nPoints-1), but never
// fewer than MinKnots.
func ClampKnots(requested, nPoints int) int {
	m := min(requested, nPoints-1)
	if m < MinKnots {
		m = MinKnots
	}
	return m
}

// Fit fits an open cubic B-spline through points, which must be ordered in
// the curve's forward direction. Points are placed at uniformly spaced curve
// parameters.
//
// The knot count is clamped with [ClampKnots]; short paths therefore get
// fewer knots instead of failing. Fewer than two points fail with
// ErrCodeFitFailed.
func Fit(points []r3.Vec, knotCount int) (*B3Spline, error) {
	if len(points) < 2 {
		return nil, errors.New(errors.ErrCodeFitFailed, "need at least 2 points to fit a spline, got %d", len(points))
	}
	if knotCount < MinKnots {
		return nil, errors.New(errors.ErrCodeInvalidOption, "knot count must be at least %d, got %d", MinKnots, knotCount)
	}
	if err := errors.ValidatePoints(points, 2); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFitFailed, err, "fit spline")
	}

	m := ClampKnots(knotCount, len(points))
	if extent(points) <= degenerateTol*magnitude(points) {
		// coincident points: the solve would leave roundoff-sized wiggles
		coeffs := make([]r3.Vec, m+2)
		for i := range coeffs {
			coeffs[i] = points[0]
		}
		return New(Model{Basis: BasisB3, KnotCount: m, Coefficients: coeffs})
	}
	coeffs, err := solve(points, m)
	if err != nil {
		return nil, err
	}
	return New(Model{Basis: BasisB3, KnotCount: m, Coefficients: coeffs})
}

// solve computes the coefficients minimizing the squared distance to the
// points plus a small penalty on the coefficients' second differences.
// The penalty makes the normal matrix positive definite for any point
// count, and vanishes on straight lines, which are reproduced exactly.
func solve(points []r3.Vec, m int) ([]r3.Vec, error) {
	rows, cols := len(points), m+2

	a := mat.NewDense(rows, cols, nil)
	b := mat.NewDense(rows, 3, nil)
	for i, p := range points {
		t := float64(m-1) * float64(i) / float64(rows-1)
		j, u := segment(t, m)
		for k, w := range basis(u, 0) {
			a.Set(i, j+k, a.At(i, j+k)+w)
		}
		b.SetRow(i, []float64{p.X, p.Y, p.Z})
	}

	d := mat.NewDense(cols-2, cols, nil)
	for i := 0; i < cols-2; i++ {
		d.Set(i, i, 1)
		d.Set(i, i+1, -2)
		d.Set(i, i+2, 1)
	}

	var data, penalty, lhs mat.SymDense
	data.SymOuterK(1, a.T())
	penalty.SymOuterK(smoothing, d.T())
	lhs.AddSym(&data, &penalty)

	var rhs mat.Dense
	rhs.Mul(a.T(), b)

	var chol mat.Cholesky
	if ok := chol.Factorize(&lhs); !ok {
		return nil, errors.New(errors.ErrCodeDegenerateCurve, "spline fit system is not positive definite")
	}
	var x mat.Dense
	if err := chol.SolveTo(&x, &rhs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDegenerateCurve, err, "solve spline fit")
	}

	coeffs := make([]r3.Vec, cols)
	for i := range coeffs {
		coeffs[i] = r3.Vec{X: x.At(i, 0), Y: x.At(i, 1), Z: x.At(i, 2)}
	}
	return coeffs, nil
}

// New builds a spline from an existing model, as read from a document.
// The model must use the B3 basis, be open, and hold KnotCount+2 finite
// coefficients.
func New(model Model) (*B3Spline, error) {
	if model.Basis != BasisB3 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unsupported basis %q", model.Basis)
	}
	if model.Closed {
		return nil, errors.New(errors.ErrCodeInvalidInput, "closed splines are not supported")
	}
	if model.KnotCount < MinKnots {
		return nil, errors.New(errors.ErrCodeInvalidInput, "knot count must be at least %d, got %d", MinKnots, model.KnotCount)
	}
	if n := model.KnotCount + 2; len(model.Coefficients) != n {
		return nil, errors.New(errors.ErrCodeInvalidInput, "%d knots need %d coefficients, got %d", model.KnotCount, n, len(model.Coefficients))
	}
	if err := errors.ValidatePoints(model.Coefficients, 0); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "spline coefficients")
	}

	s := &B3Spline{model: Model{
		Basis:        model.Basis,
		KnotCount:    model.KnotCount,
		Coefficients: slices.Clone(model.Coefficients),
	}, scale: magnitude(model.Coefficients)}
	s.cumulative = make([]float64, model.KnotCount)
	for j := 0; j < model.KnotCount-1; j++ {
		s.cumulative[j+1] = s.cumulative[j] + s.integrate(float64(j), float64(j+1))
	}
	return s, nil
}

// Model returns a copy of the spline's structural description.
func (s *B3Spline) Model() Model {
	m := s.model
	m.Coefficients = slices.Clone(s.model.Coefficients)
	return m
}

// KnotCount returns the number of knots M.
func (s *B3Spline) KnotCount() int { return s.model.KnotCount }

// Domain returns the parameter interval [0, M-1] covered by the fit.
func (s *B3Spline) Domain() (float64, float64) { return 0, float64(s.model.KnotCount - 1) }

// ArcLength returns the total length of the curve over its domain.
func (s *B3Spline) ArcLength() float64 { return s.cumulative[len(s.cumulative)-1] }

// ArcLengthAt returns the signed arc length from t=0 to t. Parameters
// outside the domain measure along the extrapolated end pieces.
func (s *B3Spline) ArcLengthAt(t float64) float64 {
	_, end := s.Domain()
	switch {
	case t <= 0:
		return -s.integrate(t, 0)
	case t >= end:
		return s.ArcLength() + s.integrate(end, t)
	}
	j, _ := segment(t, s.model.KnotCount)
	return s.cumulative[j] + s.integrate(float64(j), t)
}

// ParameterAt inverts the arc-length mapping: it returns the parameter t
// whose arc length from the start is length, to within atol. A
// non-positive atol means DefaultTolerance.
//
// Curves whose length is negligible next to their coordinates fail with
// ErrCodeDegenerateCurve; a root search that does not converge fails with
// ErrCodeNoConvergence.
func (s *B3Spline) ParameterAt(length, atol float64) (float64, error) {
	total := s.ArcLength()
	if s.negligible(total) {
		return 0, errors.New(errors.ErrCodeDegenerateCurve, "spline has zero arc length")
	}
	if atol <= 0 {
		atol = DefaultTolerance
	}

	_, end := s.Domain()
	lo, hi := math.Inf(-1), math.Inf(1)
	var t float64
	switch {
	case length < 0:
		hi = 0
		t = newtonStart(0, length, s.speed(0))
	case length > total:
		lo = end
		t = newtonStart(end, length-total, s.speed(end))
	default:
		i := sort.SearchFloat64s(s.cumulative, length)
		j := min(max(i-1, 0), s.model.KnotCount-2)
		lo, hi = float64(j), float64(j+1)
		t = lo
		if seg := s.cumulative[j+1] - s.cumulative[j]; seg > 0 {
			t = lo + (length-s.cumulative[j])/seg
		}
	}

	for range maxIterations {
		f := s.ArcLengthAt(t) - length
		if math.Abs(f) <= atol {
			return t, nil
		}
		if f > 0 {
			hi = math.Min(hi, t)
		} else {
			lo = math.Max(lo, t)
		}

		next := math.NaN()
		if v := s.speed(t); v > 0 {
			next = t - f/v
		}
		if math.IsNaN(next) || next <= lo || next >= hi {
			switch {
			case !math.IsInf(lo, 0) && !math.IsInf(hi, 0):
				next = (lo + hi) / 2
			case math.IsNaN(next):
				return 0, errors.New(errors.ErrCodeNoConvergence, "arc length %g: curve speed vanishes at t=%g", length, t)
			case next >= hi:
				next = (t + hi) / 2
			default:
				next = (t + lo) / 2
			}
		}
		t = next
	}
	return 0, errors.New(errors.ErrCodeNoConvergence, "arc length %g: no convergence within %d iterations (atol %g)", length, maxIterations, atol)
}

// negligible reports whether a length is indistinguishable from zero at
// the spline's coordinate scale.
func (s *B3Spline) negligible(length float64) bool {
	return length <= degenerateTol*s.scale
}

// magnitude returns max(1, largest absolute coordinate of pts).
func magnitude(pts []r3.Vec) float64 {
	m := 1.0
	for _, p := range pts {
		m = max(m, math.Abs(p.X), math.Abs(p.Y), math.Abs(p.Z))
	}
	return m
}

// extent returns the diagonal of the bounding box of pts.
func extent(pts []r3.Vec) float64 {
	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		lo = r3.Vec{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = r3.Vec{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
	}
	return r3.Norm(r3.Sub(hi, lo))
}

func newtonStart(t0, delta, speed float64) float64 {
	if speed <= 0 {
		return t0
	}
	return t0 + delta/speed
}

// Eval evaluates the curve at normalized arc-length positions. Position 0
// is the start of the curve and 1 its end; positions outside [0, 1] are
// extrapolated, not clamped.
//
// derivative selects the position (0) or the derivative of that order with
// respect to the curve parameter. atol is the absolute arc-length tolerance
// of the position-to-parameter conversion.
func (s *B3Spline) Eval(positions []float64, derivative int, atol float64) ([]r3.Vec, error) {
	if derivative < 0 {
		return nil, errors.New(errors.ErrCodeInvalidOption, "derivative order must be non-negative, got %d", derivative)
	}
	ts, err := s.Parameters(positions, atol)
	if err != nil {
		return nil, err
	}
	out := make([]r3.Vec, len(ts))
	for i, t := range ts {
		out[i] = s.EvalParam(t, derivative)
	}
	return out, nil
}

// Parameters converts normalized arc-length positions to curve parameters.
func (s *B3Spline) Parameters(positions []float64, atol float64) ([]float64, error) {
	total := s.ArcLength()
	ts := make([]float64, len(positions))
	for i, p := range positions {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "position %d is not finite", i)
		}
		t, err := s.ParameterAt(p*total, atol)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	return ts, nil
}

// EvalParam evaluates the curve, or a derivative of it, at parameter t.
func (s *B3Spline) EvalParam(t float64, derivative int) r3.Vec {
	j, u := segment(t, s.model.KnotCount)
	var p r3.Vec
	for k, w := range basis(u, derivative) {
		p = r3.Add(p, r3.Scale(w, s.model.Coefficients[j+k]))
	}
	return p
}

// Flip fits a new spline to the reversed path and returns it together with
// the reversed path. Use it whenever an edge's direction is reversed so
// that the path and its spline keep the same orientation.
func (s *B3Spline) Flip(path []r3.Vec) (*B3Spline, []r3.Vec, error) {
	reversed := slices.Clone(path)
	slices.Reverse(reversed)
	flipped, err := Fit(reversed, s.model.KnotCount)
	if err != nil {
		return nil, nil, err
	}
	return flipped, reversed, nil
}

// Equal reports structural equality: same basis, knot count, closedness
// and bit-identical coefficients. Two geometrically identical curves with
// different coefficients are not equal.
func (s *B3Spline) Equal(other *B3Spline) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.model.Basis == other.model.Basis &&
		s.model.KnotCount == other.model.KnotCount &&
		s.model.Closed == other.model.Closed &&
		slices.Equal(s.model.Coefficients, other.model.Coefficients)
}

// ApproxEqual is Equal with coefficients compared to an absolute tolerance.
func (s *B3Spline) ApproxEqual(other *B3Spline, tol float64) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.model.Basis != other.model.Basis ||
		s.model.KnotCount != other.model.KnotCount ||
		s.model.Closed != other.model.Closed {
		return false
	}
	for i, c := range s.model.Coefficients {
		if r3.Norm(r3.Sub(c, other.model.Coefficients[i])) > tol {
			return false
		}
	}
	return true
}

func (s *B3Spline) speed(t float64) float64 {
	return r3.Norm(s.EvalParam(t, 1))
}

func (s *B3Spline) integrate(a, b float64) float64 {
	if a == b {
		return 0
	}
	return quad.Fixed(s.speed, a, b, quadPoints, quad.Legendre{}, 0)
}

// segment maps a curve parameter to its segment index and local parameter.
// Parameters outside the domain map onto the first or last segment so that
// evaluation extrapolates the end polynomials.
func segment(t float64, knots int) (int, float64) {
	j := int(math.Floor(t))
	j = min(max(j, 0), knots-2)
	return j, t - float64(j)
}

// Linspace returns n evenly spaced values over [start, stop], both ends
// included.
func Linspace(start, stop float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}
