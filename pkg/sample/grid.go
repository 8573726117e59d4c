package sample

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
)

// Grid is a lattice of sample offsets. Points are stored in C order over
// Shape: the last axis varies fastest.
type Grid struct {
	Shape  []int
	Points []r3.Vec
}

// At returns the point at the given lattice index, one value per axis.
func (g Grid) At(idx ...int) r3.Vec {
	flat := 0
	for axis, i := range idx {
		flat = flat*g.Shape[axis] + i
	}
	return g.Points[flat]
}

// Len returns the number of points.
func (g Grid) Len() int { return len(g.Points) }

// Grid3D returns a (w, h, d) lattice centered on the origin: the point at
// index (i, j, k) is ((i - w/2) * spacing[0], (j - h/2) * spacing[1],
// (k - d/2) * spacing[2]), with integer division. For even extents the
// origin is at index (w/2, h/2, d/2) and the lattice reaches one step
// further on the negative side.
func Grid3D(shape [3]int, spacing [3]float64) (Grid, error) {
	if err := errors.ValidateShape(shape[:]...); err != nil {
		return Grid{}, err
	}
	if err := errors.ValidateSpacing(spacing[:]...); err != nil {
		return Grid{}, err
	}

	g := Grid{
		Shape:  []int{shape[0], shape[1], shape[2]},
		Points: make([]r3.Vec, 0, shape[0]*shape[1]*shape[2]),
	}
	for i := range shape[0] {
		for j := range shape[1] {
			for k := range shape[2] {
				g.Points = append(g.Points, r3.Vec{
					X: float64(i-shape[0]/2) * spacing[0],
					Y: float64(j-shape[1]/2) * spacing[1],
					Z: float64(k-shape[2]/2) * spacing[2],
				})
			}
		}
	}
	return g, nil
}

// Grid2D returns a (w, h) lattice centered on the origin and lying in the
// plane with normal (1, 0, 0): the point at (a, b) is
// (0, (a - w/2) * spacing[0], (b - h/2) * spacing[1]). It is Grid3D with a
// single layer along the first axis.
func Grid2D(shape [2]int, spacing [2]float64) (Grid, error) {
	g, err := Grid3D([3]int{1, shape[0], shape[1]}, [3]float64{1, spacing[0], spacing[1]})
	if err != nil {
		return Grid{}, err
	}
	g.Shape = g.Shape[1:]
	return g, nil
}
