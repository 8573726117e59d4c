package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
	"github.com/skeleplex/skeleplex/pkg/spline"
)

// ReadJSON decodes a skeleton graph document from r.
//
// The input must be an object with a "graph" member holding "nodes" and
// "edges" arrays:
//
//	{"graph": {"directed": false, "multigraph": true,
//	  "nodes": [{"id": 0, "node_coordinate": [10, 10, 5]}],
//	  "edges": [{"source": 0, "target": 1, "key": 0,
//	             "path_coordinates": [[10, 10, 5], ...],
//	             "spline": {"__class__": "skeleplex.B3Spline", ...}}]}}
//
// Every coordinate must have exactly three components and every edge a
// tagged spline. Malformed documents fail with ErrCodeDecodeFailed and
// unknown spline discriminators with ErrCodeUnknownDiscriminator. Edges
// that reference missing nodes fail with ErrCodeNodeNotFound.
//
// ReadJSON does not close r.
func ReadJSON(r io.Reader) (*skeleton.Graph, error) {
	return ReadJSONWith(r, NewRegistry())
}

// ReadJSONWith is ReadJSON with a caller-supplied registry.
func ReadJSONWith(r io.Reader, reg *Registry) (*skeleton.Graph, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeFailed, err, "decode")
	}
	return fromDocument(&doc, reg)
}

// Decode decodes a skeleton graph document held in data.
func Decode(data []byte) (*skeleton.Graph, error) {
	return ReadJSON(bytes.NewReader(data))
}

// ImportJSON reads the JSON file at path and returns the decoded graph.
// A missing file fails with ErrCodeFileNotFound.
func ImportJSON(path string) (*skeleton.Graph, error) {
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

func fromDocument(doc *document, reg *Registry) (*skeleton.Graph, error) {
	if doc.Graph == nil {
		return nil, errors.New(errors.ErrCodeDecodeFailed, "document has no %q member", "graph")
	}

	g := skeleton.New(doc.Graph.Directed)
	for _, n := range doc.Graph.Nodes {
		c, err := vec(n.NodeCoordinate)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDecodeFailed, err, "node %d", n.ID)
		}
		if err := g.AddNode(skeleton.Node{Key: n.ID, Coordinate: c}); err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "node %d", n.ID)
		}
	}

	for _, e := range doc.Graph.Edges {
		path := make([]r3.Vec, len(e.PathCoordinates))
		for i, p := range e.PathCoordinates {
			c, err := vec(p)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeDecodeFailed, err, "edge (%d, %d, %d) point %d", e.Source, e.Target, e.Key, i)
			}
			path[i] = c
		}
		if len(e.Spline) == 0 || string(e.Spline) == "null" {
			return nil, errors.New(errors.ErrCodeDecodeFailed, "edge (%d, %d, %d) has no spline", e.Source, e.Target, e.Key)
		}
		s, err := spline.Decode(reg, e.Spline)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "edge (%d, %d, %d) spline", e.Source, e.Target, e.Key)
		}
		edge := skeleton.Edge{U: e.Source, V: e.Target, Key: e.Key, Path: path, Spline: s}
		if err := g.InsertEdge(edge); err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "edge (%d, %d, %d)", e.Source, e.Target, e.Key)
		}
	}
	return g, nil
}

func vec(c []float64) (r3.Vec, error) {
	if len(c) != 3 {
		return r3.Vec{}, errors.New(errors.ErrCodeDecodeFailed, "coordinate needs 3 components, got %d", len(c))
	}
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}
