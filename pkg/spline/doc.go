// Package spline fits and evaluates open cubic B-spline curves in 3D.
//
// # Overview
//
// Every edge of a skeleton graph carries a [B3Spline] fit through its
// centerline path. The spline is evaluated by normalized arc length rather
// than by its native parameter: position 0 is the start of the edge, 1 its
// end, and 0.5 the point halfway along the curve.
//
//	s, err := spline.Fit(path, spline.DefaultKnots)
//	if err != nil {
//	    return err
//	}
//	points, err := s.Eval(spline.Linspace(0, 1, 11), 0, spline.DefaultTolerance)
//
// # Knots
//
// A spline with M knots has M+2 coefficients and its parameter runs over
// [0, M-1]. [Fit] clamps the requested knot count to one less than the
// number of points (see [ClampKnots]), so a short path gets a simpler curve
// instead of an error.
//
// # Arc Length
//
// The arc length of each segment is integrated once with Gauss-Legendre
// quadrature when the spline is built. Converting an arc length back to a
// parameter uses Newton's method safeguarded by bisection.
//
// # Moving Frames
//
// [B3Spline.MovingFrame] returns orthonormal frames whose first axis is the
// unit tangent. The default [FrameBishop] is a rotation minimizing frame
// that stays continuous where a Frenet frame would be undefined.
//
// # Orientation
//
// A spline has a direction. When an edge is reversed, [B3Spline.Flip] fits a
// new spline to the reversed path and returns both, so that the path and the
// spline never disagree.
//
// # Serialization
//
// Splines serialize to tagged JSON objects through a [codec.Registry];
// [Register] installs the spline decoders.
package spline
