package spline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/codec"
	"github.com/skeleplex/skeleplex/pkg/errors"
)

// Discriminators written into the "__class__" key of tagged objects.
const (
	TagSpline = "skeleplex.B3Spline"
	TagModel  = "skeleplex.SplineModel"

	// Backend identifies the implementation that produced a tagged spline.
	Backend = "skeleplex"
)

// Register adds the spline decoders to r.
func Register(r *codec.Registry) error {
	if err := r.Register(TagModel, decodeModel); err != nil {
		return err
	}
	return r.Register(TagSpline, decodeSpline)
}

// NewRegistry returns a registry that knows the spline types.
func NewRegistry() *codec.Registry {
	r := codec.NewRegistry()
	if err := Register(r); err != nil {
		panic(err) // fresh registry, cannot collide
	}
	return r
}

// Tagged returns the tagged JSON form of the spline:
//
//	{"__class__": "skeleplex.B3Spline", "backend": "skeleplex",
//	 "model": {"__class__": "skeleplex.SplineModel", "basis": "B3",
//	           "knot_count": 4, "closed": false, "coefficients": [[x, y, z], ...]}}
func (s *B3Spline) Tagged(r *codec.Registry) (map[string]any, error) {
	coeffs := make([][3]float64, len(s.model.Coefficients))
	for i, c := range s.model.Coefficients {
		coeffs[i] = [3]float64{c.X, c.Y, c.Z}
	}
	model, err := r.Tag(TagModel, map[string]any{
		"basis":        s.model.Basis,
		"knot_count":   s.model.KnotCount,
		"closed":       s.model.Closed,
		"coefficients": coeffs,
	})
	if err != nil {
		return nil, err
	}
	return r.Tag(TagSpline, map[string]any{
		"model":   model,
		"backend": Backend,
	})
}

func decodeModel(f codec.Fields, _ *codec.Registry) (any, error) {
	var (
		m      Model
		coeffs [][3]float64
	)
	if err := f.Field("basis", &m.Basis); err != nil {
		return nil, err
	}
	if err := f.Field("knot_count", &m.KnotCount); err != nil {
		return nil, err
	}
	if err := f.Field("closed", &m.Closed); err != nil {
		return nil, err
	}
	if err := f.Field("coefficients", &coeffs); err != nil {
		return nil, err
	}
	m.Coefficients = make([]r3.Vec, len(coeffs))
	for i, c := range coeffs {
		m.Coefficients[i] = r3.Vec{X: c[0], Y: c[1], Z: c[2]}
	}
	return m, nil
}

func decodeSpline(f codec.Fields, r *codec.Registry) (any, error) {
	var backend string
	if err := f.Field("backend", &backend); err != nil {
		return nil, err
	}
	if backend != Backend {
		return nil, errors.New(errors.ErrCodeDecodeFailed, "expected backend %q, got %q", Backend, backend)
	}
	raw, ok := f["model"]
	if !ok {
		return nil, errors.New(errors.ErrCodeDecodeFailed, "spline has no model")
	}
	v, err := r.Decode(raw)
	if err != nil {
		return nil, err
	}
	model, ok := v.(Model)
	if !ok {
		return nil, errors.New(errors.ErrCodeDecodeFailed, "spline model decoded to %T", v)
	}
	s, err := New(model)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeFailed, err, "rebuild spline")
	}
	return s, nil
}

// Decode reconstructs a spline from its tagged JSON form.
func Decode(r *codec.Registry, raw json.RawMessage) (*B3Spline, error) {
	v, err := r.Decode(raw)
	if err != nil {
		return nil, err
	}
	s, ok := v.(*B3Spline)
	if !ok {
		return nil, errors.New(errors.ErrCodeDecodeFailed, "expected %s, got %T", TagSpline, v)
	}
	return s, nil
}

// WriteJSON writes the tagged form of s to w.
func (s *B3Spline) WriteJSON(w io.Writer) error {
	tagged, err := s.Tagged(NewRegistry())
	if err != nil {
		return err
	}
	if err := json.NewEncoder(w).Encode(tagged); err != nil {
		return fmt.Errorf("encode spline: %w", err)
	}
	return nil
}

// ReadJSON reads a tagged spline from r.
func ReadJSON(r io.Reader) (*B3Spline, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeFailed, err, "read spline")
	}
	return Decode(NewRegistry(), raw)
}

// ExportJSON writes s to a JSON file at path.
func (s *B3Spline) ExportJSON(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return s.WriteJSON(f)
}

// ImportJSON reads a spline from the JSON file at path.
func ImportJSON(path string) (*B3Spline, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
