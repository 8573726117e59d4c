package io

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
)

type branchDocument struct {
	Nodes    []branchNode `json:"nodes"`
	Branches []branch     `json:"branches"`
}

type branchNode struct {
	ID         int       `json:"id"`
	Coordinate []float64 `json:"coordinate"`
}

type branch struct {
	Source      int         `json:"source"`
	Destination int         `json:"destination"`
	Path        [][]float64 `json:"path"`
}

// ReadBranches decodes skeletonizer output from r:
//
//	{"nodes": [{"id": 0, "coordinate": [10, 10, 5]}, ...],
//	 "branches": [{"source": 0, "destination": 1,
//	               "path": [[10, 10, 5], [10, 10, 6], ...]}, ...]}
//
// The result feeds [skeleton.FromBranches]. Paths are not validated here.
func ReadBranches(r io.Reader) (*skeleton.Skeleton, error) {
	var doc branchDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecodeFailed, err, "decode branches")
	}

	skel := &skeleton.Skeleton{
		Nodes:    make(map[int]r3.Vec, len(doc.Nodes)),
		Branches: make([]skeleton.Branch, len(doc.Branches)),
	}
	for _, n := range doc.Nodes {
		if _, dup := skel.Nodes[n.ID]; dup {
			return nil, errors.New(errors.ErrCodeDecodeFailed, "duplicate node id %d", n.ID)
		}
		c, err := vec(n.Coordinate)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDecodeFailed, err, "node %d", n.ID)
		}
		skel.Nodes[n.ID] = c
	}
	for i, b := range doc.Branches {
		path := make([]r3.Vec, len(b.Path))
		for j, p := range b.Path {
			c, err := vec(p)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeDecodeFailed, err, "branch %d point %d", i, j)
			}
			path[j] = c
		}
		skel.Branches[i] = skeleton.Branch{Source: b.Source, Destination: b.Destination, Path: path}
	}
	return skel, nil
}

// ImportBranches reads skeletonizer output from the JSON file at path.
func ImportBranches(path string) (*skeleton.Skeleton, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadBranches(f)
}

// WriteBranches encodes skeletonizer output to w, nodes in ascending id
// order.
func WriteBranches(skel *skeleton.Skeleton, w io.Writer) error {
	doc := branchDocument{
		Nodes:    make([]branchNode, 0, len(skel.Nodes)),
		Branches: make([]branch, len(skel.Branches)),
	}
	for _, id := range slices.Sorted(maps.Keys(skel.Nodes)) {
		doc.Nodes = append(doc.Nodes, branchNode{ID: id, Coordinate: coords(skel.Nodes[id])})
	}
	for i, b := range skel.Branches {
		path := make([][]float64, len(b.Path))
		for j, p := range b.Path {
			path[j] = coords(p)
		}
		doc.Branches[i] = branch{Source: b.Source, Destination: b.Destination, Path: path}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportBranches writes skeletonizer output to a JSON file at path.
func ExportBranches(skel *skeleton.Skeleton, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return WriteBranches(skel, f)
}
