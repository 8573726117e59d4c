package skeleton

import (
	"context"
	"maps"
	"slices"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/spline"
	"github.com/skeleplex/skeleplex/pkg/volume"
)

// Branch is one record of skeletonizer output: a centerline path running
// from the Source node to the Destination node.
type Branch struct {
	Source      int
	Destination int
	Path        []r3.Vec
}

// Skeleton is the raw output of a skeletonizer: node coordinates keyed by
// node id, and the branches between them.
type Skeleton struct {
	Nodes    map[int]r3.Vec
	Branches []Branch
}

// Skeletonizer reduces a binary mask to nodes and branches.
type Skeletonizer interface {
	Skeletonize(ctx context.Context, mask *volume.Mask) (*Skeleton, error)
}

// BuildOptions configures graph construction.
type BuildOptions struct {
	// MaxKnots is the knot count requested for each edge spline. Short
	// paths get fewer knots (see spline.ClampKnots). Zero means
	// spline.DefaultKnots.
	MaxKnots int

	// Logger receives progress messages. Nil means log.Default().
	Logger *log.Logger
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.MaxKnots == 0 {
		o.MaxKnots = spline.DefaultKnots
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// FromBranches builds an undirected skeleton graph. Every node of nodes is
// added in ascending key order, and every branch becomes its own edge, so
// parallel branches and loops are preserved. Each edge gets a spline fit
// through its path.
//
// A path with fewer than two points fails with ErrCodeInvalidPath, and a
// branch naming a node absent from nodes fails with ErrCodeNodeNotFound.
func FromBranches(nodes map[int]r3.Vec, branches []Branch, opts BuildOptions) (*Graph, error) {
	opts = opts.withDefaults()
	if opts.MaxKnots < spline.MinKnots {
		return nil, errors.New(errors.ErrCodeInvalidOption, "max knots must be at least %d, got %d", spline.MinKnots, opts.MaxKnots)
	}

	g := New(false)
	for _, key := range slices.Sorted(maps.Keys(nodes)) {
		if err := g.AddNode(Node{Key: key, Coordinate: nodes[key]}); err != nil {
			return nil, err
		}
	}

	for i, b := range branches {
		if !g.HasNode(b.Source) {
			return nil, errors.New(errors.ErrCodeNodeNotFound, "branch %d: source node %d not found", i, b.Source)
		}
		if !g.HasNode(b.Destination) {
			return nil, errors.New(errors.ErrCodeNodeNotFound, "branch %d: destination node %d not found", i, b.Destination)
		}
		if len(b.Path) < 2 {
			return nil, errors.New(errors.ErrCodeInvalidPath, "branch %d (%d -> %d): path has %d points, need at least 2", i, b.Source, b.Destination, len(b.Path))
		}
		path := slices.Clone(b.Path)
		s, err := spline.Fit(path, opts.MaxKnots)
		if err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "branch %d (%d -> %d)", i, b.Source, b.Destination)
		}
		if _, err := g.AddEdge(b.Source, b.Destination, path, s); err != nil {
			return nil, err
		}
	}

	opts.Logger.Debug("built skeleton graph", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return g, nil
}

// FromMask skeletonizes mask with sk and builds the graph from the result.
func FromMask(ctx context.Context, mask *volume.Mask, sk Skeletonizer, opts BuildOptions) (*Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	skel, err := sk.Skeletonize(ctx, mask)
	if err != nil {
		return nil, err
	}
	return FromBranches(skel.Nodes, skel.Branches, opts)
}
