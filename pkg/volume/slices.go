package volume

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"github.com/skeleplex/skeleplex/pkg/errors"
)

// Slice image formats understood by LoadSlices and SaveSlices.
const (
	FormatPNG  = "png"
	FormatTIFF = "tiff"
)

// LoadSlices reads a stack of 2D images into a volume. Each file becomes
// one slice along the first axis, in the order given; image rows map to the
// second axis and columns to the third. Pixels are read as 16-bit gray
// values. PNG and TIFF files are supported, and all slices must have the
// same size.
func LoadSlices(paths []string) (*Volume, error) {
	if len(paths) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no slice files given")
	}

	var vol *Volume
	for z, path := range paths {
		img, err := loadImage(path)
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		if vol == nil {
			if vol, err = New(Shape{len(paths), b.Dy(), b.Dx()}); err != nil {
				return nil, err
			}
		} else if b.Dy() != vol.Shape[1] || b.Dx() != vol.Shape[2] {
			return nil, errors.New(errors.ErrCodeInvalidInput, "slice %s is %dx%d, expected %dx%d", path, b.Dx(), b.Dy(), vol.Shape[2], vol.Shape[1])
		}
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				vol.Set(z, y, x, float64(g.Y))
			}
		}
	}
	return vol, nil
}

// LoadMask reads a stack of slices and sets every non-zero voxel.
func LoadMask(paths []string) (*Mask, error) {
	vol, err := LoadSlices(paths)
	if err != nil {
		return nil, err
	}
	return MaskFromVolume(vol, 0), nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open slice %s", path)
		}
		return nil, fmt.Errorf("open slice %s: %w", path, err)
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		img, err = tiff.Decode(f)
	default:
		img, _, err = image.Decode(f)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode slice %s", path)
	}
	return img, nil
}

// SaveSlices writes each slice along the first axis of v to dir as a 16-bit
// gray image named slice_0000.<format>, slice_0001.<format>, ... Values are
// rounded and clamped to [0, 65535]. It returns the written paths in order.
func SaveSlices(v *Volume, dir, format string) ([]string, error) {
	var encode func(io.Writer, image.Image) error
	switch format {
	case FormatPNG:
		encode = png.Encode
	case FormatTIFF:
		encode = func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidOption, "unsupported slice format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	paths := make([]string, v.Shape[0])
	for z := range paths {
		img := image.NewGray16(image.Rect(0, 0, v.Shape[2], v.Shape[1]))
		for y := 0; y < v.Shape[1]; y++ {
			for x := 0; x < v.Shape[2]; x++ {
				img.SetGray16(x, y, color.Gray16{Y: toGray16(v.At(z, y, x))})
			}
		}
		paths[z] = filepath.Join(dir, fmt.Sprintf("slice_%04d.%s", z, format))
		if err := writeImage(paths[z], img, encode); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func writeImage(path string, img image.Image, encode func(io.Writer, image.Image) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

func toGray16(v float64) uint16 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(math.Round(v))
}
