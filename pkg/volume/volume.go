// Package volume holds dense 3D scalar volumes and binary masks.
//
// Both containers store their voxels in C order: the last axis varies
// fastest, so the voxel (i, j, k) of a volume with shape (n0, n1, n2) lives
// at index (i*n1+j)*n2+k. Coordinates used by the skeleton and the sampler
// are expressed in this same axis order.
package volume

import (
	"fmt"

	"github.com/skeleplex/skeleplex/pkg/errors"
)

// Shape is the extent of a volume along each of its three axes.
type Shape [3]int

// Len returns the number of voxels.
func (s Shape) Len() int { return s[0] * s[1] * s[2] }

// Index returns the flat C-order index of voxel (i, j, k).
func (s Shape) Index(i, j, k int) int { return (i*s[1]+j)*s[2] + k }

// Unravel converts a flat index back to voxel indices.
func (s Shape) Unravel(idx int) (i, j, k int) {
	k = idx % s[2]
	idx /= s[2]
	return idx / s[1], idx % s[1], k
}

// Contains reports whether (i, j, k) is inside the volume.
func (s Shape) Contains(i, j, k int) bool {
	return i >= 0 && i < s[0] && j >= 0 && j < s[1] && k >= 0 && k < s[2]
}

func (s Shape) String() string { return fmt.Sprintf("(%d, %d, %d)", s[0], s[1], s[2]) }

// Volume is a dense scalar field.
type Volume struct {
	Shape Shape
	Data  []float64
}

// New returns a zero-filled volume.
func New(shape Shape) (*Volume, error) {
	if err := errors.ValidateShape(shape[:]...); err != nil {
		return nil, err
	}
	return &Volume{Shape: shape, Data: make([]float64, shape.Len())}, nil
}

// FromData wraps data, which must hold exactly shape.Len() values in C
// order. The slice is not copied.
func FromData(shape Shape, data []float64) (*Volume, error) {
	if err := errors.ValidateShape(shape[:]...); err != nil {
		return nil, err
	}
	if len(data) != shape.Len() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "volume of shape %s needs %d values, got %d", shape, shape.Len(), len(data))
	}
	return &Volume{Shape: shape, Data: data}, nil
}

// At returns the value of voxel (i, j, k).
func (v *Volume) At(i, j, k int) float64 { return v.Data[v.Shape.Index(i, j, k)] }

// Set assigns the value of voxel (i, j, k).
func (v *Volume) Set(i, j, k int, value float64) { v.Data[v.Shape.Index(i, j, k)] = value }

// Fill sets every voxel from f(i, j, k).
func (v *Volume) Fill(f func(i, j, k int) float64) {
	for idx := range v.Data {
		i, j, k := v.Shape.Unravel(idx)
		v.Data[idx] = f(i, j, k)
	}
}

// Mask is a binary volume.
type Mask struct {
	Shape Shape
	Data  []bool
}

// NewMask returns an empty mask.
func NewMask(shape Shape) (*Mask, error) {
	if err := errors.ValidateShape(shape[:]...); err != nil {
		return nil, err
	}
	return &Mask{Shape: shape, Data: make([]bool, shape.Len())}, nil
}

// At reports whether voxel (i, j, k) is set. Voxels outside the mask are
// never set.
func (m *Mask) At(i, j, k int) bool {
	return m.Shape.Contains(i, j, k) && m.Data[m.Shape.Index(i, j, k)]
}

// Set assigns voxel (i, j, k).
func (m *Mask) Set(i, j, k int, on bool) { m.Data[m.Shape.Index(i, j, k)] = on }

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, on := range m.Data {
		if on {
			n++
		}
	}
	return n
}

// MaskFromVolume sets every voxel whose value is strictly greater than
// threshold.
func MaskFromVolume(v *Volume, threshold float64) *Mask {
	m := &Mask{Shape: v.Shape, Data: make([]bool, len(v.Data))}
	for i, x := range v.Data {
		m.Data[i] = x > threshold
	}
	return m
}
