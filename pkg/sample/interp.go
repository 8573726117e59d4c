package sample

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/volume"
)

// DefaultOrder is the interpolation order used when callers do not choose
// one: cubic B-spline.
const DefaultOrder = 3

// poles of the B-spline interpolation prefilter, per order.
var poles = [6][]float64{
	2: {math.Sqrt(8) - 3},
	3: {math.Sqrt(3) - 2},
	4: {
		math.Sqrt(664-math.Sqrt(438976)) + math.Sqrt(304) - 19,
		math.Sqrt(664+math.Sqrt(438976)) - math.Sqrt(304) - 19,
	},
	5: {
		math.Sqrt(135.0/2-math.Sqrt(17745.0/4)) + math.Sqrt(105.0/4) - 13.0/2,
		math.Sqrt(135.0/2+math.Sqrt(17745.0/4)) - math.Sqrt(105.0/4) - 13.0/2,
	},
}

// Interpolator evaluates a volume between its voxels with B-spline
// interpolation of order 0 (nearest voxel) to 5.
//
// For orders above 1 the volume is first converted to spline coefficients
// with a recursive prefilter that extends the data by mirroring it at the
// borders, so the interpolant passes through every voxel value. The
// coefficients are computed once, when the Interpolator is created.
//
// An Interpolator is immutable and safe for concurrent use.
type Interpolator struct {
	shape  volume.Shape
	order  int
	coeffs []float64
}

// NewInterpolator prepares vol for interpolation. The volume is copied.
func NewInterpolator(vol *volume.Volume, order int) (*Interpolator, error) {
	if err := errors.ValidateOrder(order); err != nil {
		return nil, err
	}
	if len(vol.Data) != vol.Shape.Len() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "volume of shape %s holds %d values", vol.Shape, len(vol.Data))
	}
	ip := &Interpolator{
		shape:  vol.Shape,
		order:  order,
		coeffs: append([]float64(nil), vol.Data...),
	}
	if order > 1 {
		for axis := range 3 {
			ip.prefilter(axis)
		}
	}
	return ip, nil
}

// Order returns the interpolation order.
func (ip *Interpolator) Order() int { return ip.order }

// prefilter runs the 1D coefficient filter along every line of axis.
func (ip *Interpolator) prefilter(axis int) {
	n := ip.shape[axis]
	if n < 2 {
		return
	}
	stride := 1
	for a := axis + 1; a < 3; a++ {
		stride *= ip.shape[a]
	}
	line := make([]float64, n)
	for start := range ip.coeffs {
		// a line starts at every index whose coordinate along axis is 0
		if (start/stride)%n != 0 {
			continue
		}
		for i := range line {
			line[i] = ip.coeffs[start+i*stride]
		}
		filterLine(line, poles[ip.order])
		for i, c := range line {
			ip.coeffs[start+i*stride] = c
		}
	}
}

// filterLine converts samples to B-spline coefficients in place, with
// mirror boundary conditions (Unser 1999; Thevenaz et al. 2000).
func filterLine(c []float64, zs []float64) {
	n := len(c)
	gain := 1.0
	for _, z := range zs {
		gain *= (1 - z) * (1 - 1/z)
	}
	for i := range c {
		c[i] *= gain
	}
	for _, z := range zs {
		c[0] = causalInit(c, z)
		for k := 1; k < n; k++ {
			c[k] += z * c[k-1]
		}
		c[n-1] = (z / (z*z - 1)) * (z*c[n-2] + c[n-1])
		for k := n - 2; k >= 0; k-- {
			c[k] = z * (c[k+1] - c[k])
		}
	}
}

func causalInit(c []float64, z float64) float64 {
	const tolerance = 1e-15
	n := len(c)
	horizon := n
	if h := int(math.Ceil(math.Log(tolerance) / math.Log(math.Abs(z)))); h < n {
		horizon = h
	}
	if horizon < n {
		sum, zn := c[0], z
		for k := 1; k < horizon; k++ {
			sum += zn * c[k]
			zn *= z
		}
		return sum
	}

	zn := z
	iz := 1 / z
	z2n := math.Pow(z, float64(n-1))
	sum := c[0] + z2n*c[n-1]
	z2n *= z2n * iz
	for k := 1; k < n-1; k++ {
		sum += (zn + z2n) * c[k]
		zn *= z
		z2n *= iz
	}
	return sum / (1 - zn*zn)
}

// At interpolates the volume at p, given in voxel coordinates along the
// volume's three axes. A point outside [0, n-1] on any axis yields fill.
func (ip *Interpolator) At(p r3.Vec, fill float64) float64 {
	x := [3]float64{p.X, p.Y, p.Z}
	for axis, v := range x {
		if math.IsNaN(v) || v < 0 || v > float64(ip.shape[axis]-1) {
			return fill
		}
	}

	if ip.order == 0 {
		var idx [3]int
		for axis, v := range x {
			idx[axis] = min(int(math.Floor(v+0.5)), ip.shape[axis]-1)
		}
		return ip.coeffs[ip.shape.Index(idx[0], idx[1], idx[2])]
	}

	var (
		index  [3][6]int
		weight [3][6]float64
	)
	m := ip.order + 1
	for axis, v := range x {
		var start int
		if ip.order%2 == 1 {
			start = int(math.Floor(v)) - ip.order/2
		} else {
			start = int(math.Floor(v+0.5)) - ip.order/2
		}
		for i := range m {
			k := start + i
			index[axis][i] = mirror(k, ip.shape[axis])
			weight[axis][i] = bspline(ip.order, v-float64(k))
		}
	}

	var sum float64
	for a := range m {
		wa := weight[0][a]
		if wa == 0 {
			continue
		}
		for b := range m {
			wab := wa * weight[1][b]
			if wab == 0 {
				continue
			}
			row := (index[0][a]*ip.shape[1] + index[1][b]) * ip.shape[2]
			for c := range m {
				sum += wab * weight[2][c] * ip.coeffs[row+index[2][c]]
			}
		}
	}
	return sum
}

// mirror reflects k into [0, n) without repeating the edge samples.
func mirror(k, n int) int {
	if n == 1 {
		return 0
	}
	period := 2*n - 2
	k %= period
	if k < 0 {
		k += period
	}
	if k >= n {
		k = period - k
	}
	return k
}

// bspline evaluates the centered B-spline of degree n at x:
// (1/n!) * sum_k (-1)^k C(n+1, k) max(0, x + (n+1)/2 - k)^n.
func bspline(n int, x float64) float64 {
	half := float64(n+1) / 2
	if x <= -half || x >= half {
		return 0
	}
	var sum float64
	binom := 1.0
	for k := 0; k <= n+1; k++ {
		if t := x + half - float64(k); t > 0 {
			term := binom * math.Pow(t, float64(n))
			if k%2 == 1 {
				term = -term
			}
			sum += term
		}
		binom = binom * float64(n+1-k) / float64(k+1)
	}
	for k := 2; k <= n; k++ {
		sum /= float64(k)
	}
	return sum
}

// SampleVolume interpolates vol at every coordinate with B-spline
// interpolation of the given order (0 to 5). Coordinates outside the volume
// on any axis yield fill; there is no clamping and no wrap-around.
func SampleVolume(vol *volume.Volume, coords []r3.Vec, order int, fill float64) ([]float64, error) {
	ip, err := NewInterpolator(vol, order)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(coords))
	for i, p := range coords {
		out[i] = ip.At(p, fill)
	}
	return out, nil
}
