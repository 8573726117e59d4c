package sample

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/spline"
	"github.com/skeleplex/skeleplex/pkg/volume"
)

func testVolume(t *testing.T, shape volume.Shape, f func(i, j, k int) float64) *volume.Volume {
	t.Helper()
	v, err := volume.New(shape)
	require.NoError(t, err)
	for i := range shape[0] {
		for j := range shape[1] {
			for k := range shape[2] {
				v.Set(i, j, k, f(i, j, k))
			}
		}
	}
	return v
}

func TestGrid3D(t *testing.T) {
	g, err := Grid3D([3]int{10, 10, 10}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 10, 10}, g.Shape)
	assert.Equal(t, 1000, g.Len())
	assert.Equal(t, r3.Vec{}, g.At(5, 5, 5))
	assert.Equal(t, r3.Vec{X: -5, Y: -5, Z: -5}, g.At(0, 0, 0))
	assert.Equal(t, r3.Vec{X: 4, Y: 4, Z: 4}, g.At(9, 9, 9))

	g, err = Grid3D([3]int{3, 1, 5}, [3]float64{2, 1, 0.5})
	require.NoError(t, err)
	assert.Equal(t, r3.Vec{}, g.At(1, 0, 2))
	assert.Equal(t, r3.Vec{X: 2, Y: 0, Z: -1}, g.At(2, 0, 0))
}

func TestGrid2D(t *testing.T) {
	g, err := Grid2D([2]int{4, 6}, [2]float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 6}, g.Shape)
	assert.Equal(t, 24, g.Len())
	assert.Equal(t, r3.Vec{}, g.At(2, 3))
	assert.Equal(t, r3.Vec{X: 0, Y: -2, Z: -6}, g.At(0, 0))
	for _, p := range g.Points {
		assert.Zero(t, p.X, "2D grids lie in the plane with normal (1, 0, 0)")
	}
}

func TestGrid_Errors(t *testing.T) {
	_, err := Grid3D([3]int{0, 2, 2}, [3]float64{1, 1, 1})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	_, err = Grid2D([2]int{2, -1}, [2]float64{1, 1})
	assert.True(t, errors.IsValidation(err))
	_, err = Grid2D([2]int{2, 2}, [2]float64{math.NaN(), 1})
	assert.True(t, errors.IsValidation(err))
}

func TestBSpline_PartitionOfUnity(t *testing.T) {
	for order := 1; order <= 5; order++ {
		for _, x := range []float64{0, 0.25, 0.5, 0.9} {
			var sum float64
			for k := -4; k <= 4; k++ {
				sum += bspline(order, x-float64(k))
			}
			assert.InDelta(t, 1, sum, 1e-9, "order %d at %g", order, x)
		}
	}
	assert.InDelta(t, 2.0/3, bspline(3, 0), 1e-12)
	assert.InDelta(t, 0.75, bspline(2, 0), 1e-12)
	assert.Zero(t, bspline(3, 2))
}

func TestMirror(t *testing.T) {
	got := make([]int, 0, 12)
	for k := -3; k < 9; k++ {
		got = append(got, mirror(k, 4))
	}
	assert.Equal(t, []int{3, 2, 1, 0, 1, 2, 3, 2, 1, 0, 1, 2}, got)
	assert.Equal(t, 0, mirror(7, 1))
}

func TestSampleVolume_ReproducesConstants(t *testing.T) {
	vol := testVolume(t, volume.Shape{5, 6, 7}, func(int, int, int) float64 { return 3.5 })
	coords := []r3.Vec{{X: 0.3, Y: 2.7, Z: 5.1}, {X: 4, Y: 5, Z: 6}, {X: 2, Y: 0.5, Z: 0}}
	for order := 0; order <= 5; order++ {
		got, err := SampleVolume(vol, coords, order, math.NaN())
		require.NoError(t, err)
		for i := range coords {
			assert.InDelta(t, 3.5, got[i], 1e-9, "order %d point %d", order, i)
		}
	}
}

func TestSampleVolume_InterpolatesVoxels(t *testing.T) {
	f := func(i, j, k int) float64 { return math.Sin(float64(i)) + math.Cos(2*float64(j)) + float64(k*k)/7 }
	vol := testVolume(t, volume.Shape{6, 6, 6}, f)

	var coords []r3.Vec
	var want []float64
	for _, idx := range [][3]int{{0, 0, 0}, {5, 5, 5}, {2, 3, 4}, {1, 5, 0}, {4, 0, 3}} {
		coords = append(coords, r3.Vec{X: float64(idx[0]), Y: float64(idx[1]), Z: float64(idx[2])})
		want = append(want, f(idx[0], idx[1], idx[2]))
	}
	for order := 0; order <= 5; order++ {
		got, err := SampleVolume(vol, coords, order, math.NaN())
		require.NoError(t, err)
		for i := range coords {
			assert.InDelta(t, want[i], got[i], 1e-9, "order %d point %v", order, coords[i])
		}
	}
}

func TestSampleVolume_Linear(t *testing.T) {
	vol := testVolume(t, volume.Shape{4, 4, 4}, func(i, j, k int) float64 { return float64(i + 2*j - k) })
	p := r3.Vec{X: 1.25, Y: 2.5, Z: 0.75}
	got, err := SampleVolume(vol, []r3.Vec{p}, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.25+5-0.75, got[0], 1e-12)
}

func TestSampleVolume_Nearest(t *testing.T) {
	vol := testVolume(t, volume.Shape{3, 3, 3}, func(i, j, k int) float64 { return float64(100*i + 10*j + k) })
	got, err := SampleVolume(vol, []r3.Vec{{X: 0.4, Y: 1.6, Z: 1.5}, {X: 2, Y: 2, Z: 1.49}}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{22, 221}, got)
}

func TestSampleVolume_Fill(t *testing.T) {
	vol := testVolume(t, volume.Shape{3, 3, 3}, func(int, int, int) float64 { return 1 })
	coords := []r3.Vec{
		{X: -0.01, Y: 1, Z: 1},
		{X: 1, Y: 2.01, Z: 1},
		{X: 1, Y: 1, Z: 30},
		{X: math.NaN(), Y: 1, Z: 1},
	}
	for _, order := range []int{0, 1, 3} {
		got, err := SampleVolume(vol, coords, order, -7)
		require.NoError(t, err)
		assert.Equal(t, []float64{-7, -7, -7, -7}, got, "order %d", order)

		got, err = SampleVolume(vol, coords[:1], order, math.NaN())
		require.NoError(t, err)
		assert.True(t, math.IsNaN(got[0]))
	}
}

func TestSampleVolume_Errors(t *testing.T) {
	vol := testVolume(t, volume.Shape{2, 2, 2}, func(int, int, int) float64 { return 0 })
	for _, order := range []int{-1, 6} {
		_, err := SampleVolume(vol, nil, order, 0)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidOption), "order %d", order)
	}

	bad := &volume.Volume{Shape: volume.Shape{2, 2, 2}, Data: make([]float64, 3)}
	_, err := NewInterpolator(bad, 1)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestInterpolator_DoesNotAliasVolume(t *testing.T) {
	vol := testVolume(t, volume.Shape{3, 3, 3}, func(int, int, int) float64 { return 2 })
	ip, err := NewInterpolator(vol, 3)
	require.NoError(t, err)
	vol.Fill(func(int, int, int) float64 { return 9 })
	assert.InDelta(t, 2, ip.At(r3.Vec{X: 1, Y: 1, Z: 1}, 0), 1e-12)
	assert.Equal(t, 3, ip.Order())
}

func straightSpline(t *testing.T) *spline.B3Spline {
	t.Helper()
	pts := make([]r3.Vec, 11)
	for i := range pts {
		pts[i] = r3.Vec{X: 2 + float64(i), Y: 5, Z: 5}
	}
	s, err := spline.Fit(pts, 4)
	require.NoError(t, err)
	return s
}

func TestSampleCrossSections(t *testing.T) {
	vol := testVolume(t, volume.Shape{16, 11, 11}, func(_, j, _ int) float64 { return float64(j) })
	s := straightSpline(t)

	opts := DefaultCrossSectionOptions()
	opts.Order = 1
	positions := []float64{0, 0.5, 1}
	out, err := SampleCrossSections(context.Background(), vol, s, positions, opts)
	require.NoError(t, err)
	assert.Equal(t, volume.Shape{3, 10, 10}, out.Shape)

	grid, err := Grid2D(opts.GridShape, opts.GridSpacing)
	require.NoError(t, err)
	centers, err := s.Eval(positions, 0, opts.Tolerance)
	require.NoError(t, err)
	frames, err := s.MovingFrame(positions, opts.FrameMethod, opts.Tolerance)
	require.NoError(t, err)

	for i := range positions {
		assert.InDelta(t, 5, out.At(i, 5, 5), 1e-6, "section %d is centered on the curve", i)
		for j, p := range PlaceGrid(grid, centers[i], frames[i]) {
			got := out.Data[i*grid.Len()+j]
			if p.Y < 0 || p.Y > 10 || p.Z < 0 || p.Z > 10 {
				assert.True(t, math.IsNaN(got), "section %d point %d lies outside", i, j)
				continue
			}
			assert.InDelta(t, p.Y, got, 1e-6, "section %d point %d", i, j)
		}
	}
}

func TestSampleCrossSections_FollowsInputOrder(t *testing.T) {
	vol := testVolume(t, volume.Shape{16, 11, 11}, func(i, _, _ int) float64 { return float64(i) })
	s := straightSpline(t)

	opts := DefaultCrossSectionOptions()
	opts.GridShape = [2]int{3, 3}
	opts.Workers = 2
	opts.Order = 1
	positions := []float64{0.9, 0.1, 0.5, 0.3, 0.7}
	out, err := SampleCrossSections(context.Background(), vol, s, positions, opts)
	require.NoError(t, err)

	for i, pos := range positions {
		assert.InDelta(t, 2+10*pos, out.At(i, 1, 1), 1e-4, "section %d", i)
	}
}

func TestSampleCrossSections_PlaneIsPerpendicular(t *testing.T) {
	vol := testVolume(t, volume.Shape{16, 11, 11}, func(i, _, _ int) float64 { return float64(i) })
	out, err := SampleCrossSections(context.Background(), vol, straightSpline(t), []float64{0.5}, DefaultCrossSectionOptions())
	require.NoError(t, err)

	for _, v := range out.Data {
		if !math.IsNaN(v) {
			assert.InDelta(t, 7, v, 1e-4, "every sample lies in the plane x = 7")
		}
	}
}

func TestSampleCrossSections_Errors(t *testing.T) {
	vol := testVolume(t, volume.Shape{4, 4, 4}, func(int, int, int) float64 { return 0 })
	s := straightSpline(t)
	ctx := context.Background()

	_, err := SampleCrossSections(ctx, vol, s, nil, DefaultCrossSectionOptions())
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	opts := DefaultCrossSectionOptions()
	opts.GridShape = [2]int{0, 4}
	_, err = SampleCrossSections(ctx, vol, s, []float64{0.5}, opts)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	opts = DefaultCrossSectionOptions()
	opts.Order = 7
	_, err = SampleCrossSections(ctx, vol, s, []float64{0.5}, opts)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidOption))

	opts = DefaultCrossSectionOptions()
	opts.FrameMethod = "twisted"
	_, err = SampleCrossSections(ctx, vol, s, []float64{0.5}, opts)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidOption))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = SampleCrossSections(cancelled, vol, s, []float64{0.2, 0.8}, DefaultCrossSectionOptions())
	assert.ErrorIs(t, err, context.Canceled)
}
