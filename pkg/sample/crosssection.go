package sample

import (
	"context"
	"math"
	"runtime"

	"gonum.org/v1/gonum/spatial/r3"
	"golang.org/x/sync/errgroup"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/spline"
	"github.com/skeleplex/skeleplex/pkg/volume"
)

// CrossSectionOptions configures SampleCrossSections.
type CrossSectionOptions struct {
	GridShape   [2]int     // samples per cross section
	GridSpacing [2]float64 // distance between samples, in voxels
	FrameMethod spline.FrameMethod
	Order       int     // interpolation order, 0 to 5
	Fill        float64 // value for samples outside the volume
	Tolerance   float64 // arc-length tolerance; 0 means spline.DefaultTolerance
	Workers     int     // concurrent positions; 0 means GOMAXPROCS
}

// DefaultCrossSectionOptions returns 10x10 unit-spaced cross sections with
// Bishop frames, cubic interpolation and NaN fill.
func DefaultCrossSectionOptions() CrossSectionOptions {
	return CrossSectionOptions{
		GridShape:   [2]int{10, 10},
		GridSpacing: [2]float64{1, 1},
		FrameMethod: spline.FrameBishop,
		Order:       DefaultOrder,
		Fill:        math.NaN(),
	}
}

// SampleCrossSections resamples vol in planes perpendicular to s. For each
// normalized arc-length position it computes the moving frame, places a 2D
// grid in the plane spanned by the frame's two normals, centers it on the
// curve, and interpolates vol there.
//
// The result has shape (len(positions), GridShape[0], GridShape[1]): slice
// i is the cross section at positions[i]. Positions are sampled
// concurrently; the output order always follows the input.
func SampleCrossSections(ctx context.Context, vol *volume.Volume, s *spline.B3Spline, positions []float64, opts CrossSectionOptions) (*volume.Volume, error) {
	if len(positions) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no positions to sample")
	}
	grid, err := Grid2D(opts.GridShape, opts.GridSpacing)
	if err != nil {
		return nil, err
	}
	ip, err := NewInterpolator(vol, opts.Order)
	if err != nil {
		return nil, err
	}
	centers, err := s.Eval(positions, 0, opts.Tolerance)
	if err != nil {
		return nil, err
	}
	frames, err := s.MovingFrame(positions, opts.FrameMethod, opts.Tolerance)
	if err != nil {
		return nil, err
	}

	out, err := volume.New(volume.Shape{len(positions), opts.GridShape[0], opts.GridShape[1]})
	if err != nil {
		return nil, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	size := grid.Len()
	for i := range positions {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			section := out.Data[i*size : (i+1)*size]
			for j, p := range PlaceGrid(grid, centers[i], frames[i]) {
				section[j] = ip.At(p, opts.Fill)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// PlaceGrid maps the points of a Grid2D into the normal plane of frame,
// centered on center: the grid point (0, a, b) lands at
// center + a*normal + b*binormal.
func PlaceGrid(grid Grid, center r3.Vec, frame spline.Frame) []r3.Vec {
	out := make([]r3.Vec, len(grid.Points))
	for i, p := range grid.Points {
		q := r3.Add(center, r3.Scale(p.X, frame.Tangent()))
		q = r3.Add(q, r3.Scale(p.Y, frame.Normal()))
		out[i] = r3.Add(q, r3.Scale(p.Z, frame.Binormal()))
	}
	return out
}
