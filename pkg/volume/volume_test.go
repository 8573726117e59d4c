package volume

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skeleplex/skeleplex/pkg/errors"
)

func TestShapeIndex(t *testing.T) {
	s := Shape{2, 3, 4}
	if s.Len() != 24 {
		t.Fatalf("Len() = %d, want 24", s.Len())
	}
	for idx := 0; idx < s.Len(); idx++ {
		i, j, k := s.Unravel(idx)
		if got := s.Index(i, j, k); got != idx {
			t.Errorf("Index(Unravel(%d)) = %d", idx, got)
		}
	}
	if s.Index(1, 2, 3) != 23 {
		t.Errorf("Index(1, 2, 3) = %d, want 23", s.Index(1, 2, 3))
	}
	if s.Contains(2, 0, 0) || s.Contains(0, -1, 0) || !s.Contains(1, 2, 3) {
		t.Error("Contains() gave wrong bounds")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Shape{0, 2, 2}); !errors.IsValidation(err) {
		t.Errorf("New(zero axis) error = %v, want validation error", err)
	}
	if _, err := FromData(Shape{2, 2, 2}, make([]float64, 7)); !errors.IsValidation(err) {
		t.Errorf("FromData(short) error = %v, want validation error", err)
	}
	if _, err := NewMask(Shape{1, -1, 1}); !errors.IsValidation(err) {
		t.Errorf("NewMask(negative) error = %v, want validation error", err)
	}
}

func TestMaskFromVolume(t *testing.T) {
	v, err := New(Shape{2, 2, 2})
	require.NoError(t, err)
	v.Set(0, 1, 1, 5)
	v.Set(1, 0, 0, 0.5)

	m := MaskFromVolume(v, 1)
	if m.Count() != 1 || !m.At(0, 1, 1) {
		t.Errorf("MaskFromVolume(1) set %d voxels, want only (0, 1, 1)", m.Count())
	}
	if m.At(5, 5, 5) {
		t.Error("At() outside the mask should be false")
	}
}

func TestSaveLoadSlices(t *testing.T) {
	for _, format := range []string{FormatPNG, FormatTIFF} {
		t.Run(format, func(t *testing.T) {
			v, err := New(Shape{3, 4, 5})
			require.NoError(t, err)
			v.Fill(func(i, j, k int) float64 { return float64(100*i + 10*j + k) })

			paths, err := SaveSlices(v, t.TempDir(), format)
			require.NoError(t, err)
			require.Len(t, paths, 3)

			got, err := LoadSlices(paths)
			require.NoError(t, err)
			require.Equal(t, v.Shape, got.Shape)
			require.Equal(t, v.Data, got.Data)
		})
	}
}

func TestLoadSlices_Errors(t *testing.T) {
	if _, err := LoadSlices(nil); !errors.IsValidation(err) {
		t.Errorf("LoadSlices(nil) error = %v, want validation error", err)
	}
	_, err := LoadSlices([]string{filepath.Join(t.TempDir(), "missing.png")})
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("LoadSlices(missing) error = %v, want %s", err, errors.ErrCodeFileNotFound)
	}

	dir := t.TempDir()
	a, err := New(Shape{1, 2, 2})
	require.NoError(t, err)
	b, err := New(Shape{1, 3, 2})
	require.NoError(t, err)
	pa, err := SaveSlices(a, filepath.Join(dir, "a"), FormatPNG)
	require.NoError(t, err)
	pb, err := SaveSlices(b, filepath.Join(dir, "b"), FormatPNG)
	require.NoError(t, err)
	if _, err := LoadSlices(append(pa, pb...)); !errors.IsValidation(err) {
		t.Errorf("LoadSlices(mismatched) error = %v, want validation error", err)
	}

	if _, err := SaveSlices(a, dir, "bmp"); !errors.Is(err, errors.ErrCodeInvalidOption) {
		t.Errorf("SaveSlices(bmp) error = %v, want %s", err, errors.ErrCodeInvalidOption)
	}
}

func TestVolume_BinaryRoundTrip(t *testing.T) {
	v, err := New(Shape{2, 3, 4})
	require.NoError(t, err)
	v.Fill(func(i, j, k int) float64 { return float64(i) - float64(j)/3 + float64(k*k) })
	v.Data[5] = math.NaN()

	data, err := v.MarshalBinary()
	require.NoError(t, err)
	var got Volume
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, v.Shape, got.Shape)
	for i := range v.Data {
		if math.IsNaN(v.Data[i]) {
			assert.True(t, math.IsNaN(got.Data[i]))
			continue
		}
		assert.Equal(t, v.Data[i], got.Data[i])
	}

	assert.True(t, errors.Is(got.UnmarshalBinary([]byte("nope")), errors.ErrCodeDecodeFailed))
	assert.True(t, errors.Is(got.UnmarshalBinary(data[:len(data)-8]), errors.ErrCodeDecodeFailed))
}
