package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/skeleton"
)

type document struct {
	Graph *graph `json:"graph"`
}

type graph struct {
	Directed   bool   `json:"directed"`
	Multigraph bool   `json:"multigraph"`
	Nodes      []node `json:"nodes"`
	Edges      []edge `json:"edges"`
}

type node struct {
	ID             int       `json:"id"`
	NodeCoordinate []float64 `json:"node_coordinate"`
}

type edge struct {
	Source          int             `json:"source"`
	Target          int             `json:"target"`
	Key             int             `json:"key"`
	PathCoordinates [][]float64     `json:"path_coordinates"`
	Spline          json.RawMessage `json:"spline"`
}

func coords(v r3.Vec) []float64 { return []float64{v.X, v.Y, v.Z} }

// WriteJSON encodes a skeleton graph as JSON and writes it to w.
// Nodes are written in ascending key order and edges in insertion order.
// Each edge spline becomes a tagged object (see [NewRegistry]).
func WriteJSON(g *skeleton.Graph, w io.Writer) error {
	doc, err := toDocument(g, NewRegistry())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// Encode returns the JSON document for g.
func Encode(g *skeleton.Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportJSON writes a skeleton graph to a JSON file at path. An error
// closing the file is returned when nothing else failed.
func ExportJSON(g *skeleton.Graph, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return WriteJSON(g, f)
}

func toDocument(g *skeleton.Graph, reg *Registry) (*document, error) {
	out := &graph{
		Directed:   g.Directed(),
		Multigraph: true,
		Nodes:      make([]node, 0, g.NodeCount()),
		Edges:      make([]edge, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		out.Nodes = append(out.Nodes, node{ID: n.Key, NodeCoordinate: coords(n.Coordinate)})
	}
	for _, e := range g.Edges() {
		tagged, err := e.Spline.Tagged(reg)
		if err != nil {
			return nil, fmt.Errorf("edge (%d, %d, %d): %w", e.U, e.V, e.Key, err)
		}
		raw, err := json.Marshal(tagged)
		if err != nil {
			return nil, fmt.Errorf("edge (%d, %d, %d): encode spline: %w", e.U, e.V, e.Key, err)
		}
		path := make([][]float64, len(e.Path))
		for i, p := range e.Path {
			path[i] = coords(p)
		}
		out.Edges = append(out.Edges, edge{
			Source:          e.U,
			Target:          e.V,
			Key:             e.Key,
			PathCoordinates: path,
			Spline:          raw,
		})
	}
	return &document{Graph: out}, nil
}
