package transform

import (
	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
)

// OrientOptions configures Orient.
type OrientOptions struct {
	// BreakCycles makes Orient remove back edges from an already directed
	// graph with [BreakCycles]. Without it directed input is returned as is.
	BreakCycles bool

	// Logger receives the warnings emitted when edges are dropped or a
	// disconnected fragment is oriented from a guessed root. Nil means
	// log.Default().
	Logger *log.Logger
}

// OrientReport describes what Orient did to the graph.
type OrientReport struct {
	Root int

	// AlreadyDirected is set when the input was directed and returned
	// unchanged.
	AlreadyDirected bool

	// Dropped lists the edges that were not part of any breadth-first tree
	// (parallel edges, self-loops and cycle-closing edges), keyed as in the
	// input graph.
	Dropped []skeleton.EdgeKey

	// Flipped lists the edges, keyed as in the output graph, whose path and
	// spline were reversed to run from source to target.
	Flipped []skeleton.EdgeKey

	// FragmentRoots lists the local roots chosen for components that do not
	// contain Root, in the order they were oriented.
	FragmentRoots []int
}

// Warn logs the report's warnings: the already-directed notice, one line
// per dropped edge and one per fragment root. It reproduces what Orient
// logged when the report was made, for reports read back from storage.
func (r *OrientReport) Warn(logger *log.Logger) {
	switch {
	case r.AlreadyDirected && len(r.Dropped) > 0:
		logger.Warn("graph is already directed, only breaking cycles", "root", r.Root, "dropped", len(r.Dropped))
	case r.AlreadyDirected:
		logger.Warn("graph is already directed, skipping orientation", "root", r.Root)
	}
	for _, root := range r.FragmentRoots {
		logger.Warn("orienting disconnected fragment from highest-degree node", "root", root)
	}
	for _, k := range r.Dropped {
		logger.Warn("dropping edge outside the orientation tree", "u", k.U, "v", k.V, "key", k.Key)
	}
}

// treeEdge records the direction the traversal crossed an input edge.
type treeEdge struct {
	parent, child int
}

// Orient returns a directed copy of g rooted at root. The input graph is not
// modified.
//
// Orientation is a breadth-first traversal from root over the undirected
// graph. Neighbors are visited in ascending key order, and between parallel
// edges the one with the lowest multiplicity key wins. Only the edges of
// the traversal tree are kept; all other edges are dropped, so cycles in
// the skeleton are cut. Each dropped edge is logged at warn level and
// listed in the report.
//
// Components not reachable from root are oriented from their node of
// highest degree (the smallest key among ties). This is a best-effort guess
// at the fragment's true root and is logged at warn level.
//
// Every kept edge runs from parent to child. When its stored path runs the
// other way, the path is reversed and the spline refit with
// [spline.B3Spline.Flip]. Edges keep their multiplicity keys.
//
// A root that is not in g fails with ErrCodeNodeNotFound. A graph that is
// already directed is returned as is, with a warning and
// OrientReport.AlreadyDirected set. With OrientOptions.BreakCycles a copy
// is returned instead, with the back edges found by [BreakCycles] removed
// and listed as dropped.
func Orient(g *skeleton.Graph, root int, opts OrientOptions) (*skeleton.Graph, *OrientReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if !g.HasNode(root) {
		return nil, nil, errors.New(errors.ErrCodeNodeNotFound, "root node %d not found", root)
	}
	report := &OrientReport{Root: root}
	if g.Directed() {
		report.AlreadyDirected = true
		if !opts.BreakCycles {
			report.Warn(logger)
			return g, report, nil
		}
		d := g.Copy()
		report.Dropped = BreakCycles(d)
		report.Warn(logger)
		return d, report, nil
	}

	incidence := g.Incidence()
	visited := make(map[int]bool, g.NodeCount())
	tree := make(map[skeleton.EdgeKey]treeEdge, g.NodeCount())
	bfs := func(start int) {
		visited[start] = true
		for queue := []int{start}; len(queue) > 0; queue = queue[1:] {
			node := queue[0]
			for _, e := range incidence[node] {
				next := e.Other(node)
				if visited[next] {
					continue
				}
				visited[next] = true
				tree[e.EdgeKey()] = treeEdge{parent: node, child: next}
				queue = append(queue, next)
			}
		}
	}

	bfs(root)
	for _, comp := range g.ConnectedComponents() {
		if visited[comp[0]] {
			continue
		}
		local, deg := fragmentRoot(incidence, comp)
		logger.Warn("orienting disconnected fragment from highest-degree node",
			"root", local, "degree", deg, "nodes", len(comp))
		report.FragmentRoots = append(report.FragmentRoots, local)
		bfs(local)
	}

	d := skeleton.New(true)
	for _, n := range g.Nodes() {
		if err := d.AddNode(n); err != nil {
			return nil, nil, err
		}
	}

	for _, e := range g.Edges() {
		dir, ok := tree[e.EdgeKey()]
		if !ok {
			logger.Warn("dropping edge outside the orientation tree", "u", e.U, "v", e.V, "key", e.Key)
			report.Dropped = append(report.Dropped, e.EdgeKey())
			continue
		}

		out := skeleton.Edge{U: dir.parent, V: dir.child, Key: e.Key, Path: e.Path, Spline: e.Spline}
		backward, err := runsBackward(g, out)
		if err != nil {
			return nil, nil, err
		}
		if backward {
			if out.Spline, out.Path, err = e.Spline.Flip(e.Path); err != nil {
				return nil, nil, errors.Wrap(errors.GetCode(err), err, "flip edge (%d, %d, %d)", e.U, e.V, e.Key)
			}
			report.Flipped = append(report.Flipped, out.EdgeKey())
		} else {
			out.Path = append([]r3.Vec(nil), e.Path...)
		}
		if err := d.InsertEdge(out); err != nil {
			return nil, nil, err
		}
	}

	logger.Debug("oriented skeleton graph", "root", root,
		"edges", d.EdgeCount(), "dropped", len(report.Dropped), "flipped", len(report.Flipped))
	return d, report, nil
}

// fragmentRoot picks the node of maximum degree, preferring the smallest
// key, and returns it with its degree. comp is sorted ascending.
func fragmentRoot(incidence map[int][]skeleton.Edge, comp []int) (int, int) {
	best, bestDegree := comp[0], degree(incidence, comp[0])
	for _, n := range comp[1:] {
		if d := degree(incidence, n); d > bestDegree {
			best, bestDegree = n, d
		}
	}
	return best, bestDegree
}

// degree counts edge ends at node; a self-loop counts twice.
func degree(incidence map[int][]skeleton.Edge, node int) int {
	d := 0
	for _, e := range incidence[node] {
		d++
		if e.IsSelfLoop() {
			d++
		}
	}
	return d
}

// runsBackward reports whether e's path starts near V and ends near U
// rather than the other way around.
func runsBackward(g *skeleton.Graph, e skeleton.Edge) (bool, error) {
	u, ok := g.Node(e.U)
	if !ok {
		return false, errors.New(errors.ErrCodeNodeNotFound, "node %d not found", e.U)
	}
	v, ok := g.Node(e.V)
	if !ok {
		return false, errors.New(errors.ErrCodeNodeNotFound, "node %d not found", e.V)
	}
	first, last := e.Path[0], e.Path[len(e.Path)-1]
	forward := r3.Norm(r3.Sub(first, u.Coordinate)) + r3.Norm(r3.Sub(last, v.Coordinate))
	reverse := r3.Norm(r3.Sub(first, v.Coordinate)) + r3.Norm(r3.Sub(last, u.Coordinate))
	return reverse < forward, nil
}
