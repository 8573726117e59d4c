package spline

// Uniform cubic B-spline basis on one segment.
//
// A point on segment j with local parameter u = t - j is
//
//	r(t) = w0(u)*c[j] + w1(u)*c[j+1] + w2(u)*c[j+2] + w3(u)*c[j+3]
//
// where c is the coefficient array (c[0] belongs to knot -1). The weights
// are the centered cubic B-spline β3 shifted to each coefficient.

// basis returns the four segment weights for the given derivative order.
// Orders above 3 are identically zero.
func basis(u float64, derivative int) [4]float64 {
	switch derivative {
	case 0:
		v := 1 - u
		u2 := u * u
		u3 := u2 * u
		return [4]float64{
			v * v * v / 6,
			(3*u3 - 6*u2 + 4) / 6,
			(-3*u3 + 3*u2 + 3*u + 1) / 6,
			u3 / 6,
		}
	case 1:
		v := 1 - u
		u2 := u * u
		return [4]float64{
			-v * v / 2,
			(3*u2 - 4*u) / 2,
			(-3*u2 + 2*u + 1) / 2,
			u2 / 2,
		}
	case 2:
		return [4]float64{1 - u, 3*u - 2, 1 - 3*u, u}
	case 3:
		return [4]float64{-1, 3, -3, 1}
	default:
		return [4]float64{}
	}
}
