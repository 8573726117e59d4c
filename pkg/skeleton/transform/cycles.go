package transform

import (
	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
)

// BreakCycles removes back edges from a directed graph until it is acyclic
// and returns the keys of the removed edges. The depth-first search starts
// from nodes without incoming edges, then from any node not yet reached, in
// ascending key order. Undirected graphs are left untouched; orient them
// instead.
func BreakCycles(g *skeleton.Graph) []skeleton.EdgeKey {
	if !g.Directed() {
		return nil
	}

	const (
		white = iota
		gray
		black
	)

	out := make(map[int][]skeleton.Edge, g.NodeCount())
	indegree := make(map[int]int, g.NodeCount())
	for _, e := range g.Edges() {
		out[e.U] = append(out[e.U], e)
		indegree[e.V]++
	}

	color := make(map[int]int, g.NodeCount())
	var backEdges []skeleton.EdgeKey

	var dfs func(node int)
	dfs = func(node int) {
		color[node] = gray
		for _, e := range out[node] {
			switch color[e.V] {
			case white:
				dfs(e.V)
			case gray:
				backEdges = append(backEdges, e.EdgeKey())
			}
		}
		color[node] = black
	}

	keys := g.NodeKeys()
	for _, n := range keys {
		if indegree[n] == 0 && color[n] == white {
			dfs(n)
		}
	}
	for _, n := range keys {
		if color[n] == white {
			dfs(n)
		}
	}

	for _, k := range backEdges {
		_ = g.RemoveEdge(k) // found in g above
	}
	return backEdges
}

// ValidateOrientation checks that d is a directed tree-like skeleton rooted
// at root: d is directed, root has no incoming edge, d has no directed
// cycle, every node is reachable from root, and every edge path starts at
// its source node and ends at its target node.
//
// Use ValidateForest for graphs with fragments oriented from their own
// roots.
func ValidateOrientation(d *skeleton.Graph, root int) error {
	if err := ValidateForest(d, root); err != nil {
		return err
	}
	if reached := Reachable(d, root); len(reached) != d.NodeCount() {
		return errors.New(errors.ErrCodeInvalidInput, "%d of %d nodes are not reachable from root %d",
			d.NodeCount()-len(reached), d.NodeCount(), root)
	}
	return nil
}

// ValidateForest is ValidateOrientation without the reachability check.
func ValidateForest(d *skeleton.Graph, root int) error {
	if !d.Directed() {
		return errors.New(errors.ErrCodeInvalidInput, "graph is not directed")
	}
	if !d.HasNode(root) {
		return errors.New(errors.ErrCodeNodeNotFound, "root node %d not found", root)
	}
	if n := d.InDegree(root); n != 0 {
		return errors.New(errors.ErrCodeInvalidInput, "root node %d has %d incoming edges", root, n)
	}
	if !d.IsAcyclic() {
		return errors.New(errors.ErrCodeInvalidInput, "graph contains a cycle")
	}
	for _, e := range d.Edges() {
		backward, err := runsBackward(d, e)
		if err != nil {
			return err
		}
		if backward {
			return errors.New(errors.ErrCodeInvalidInput, "edge (%d, %d, %d) path runs from %v to %v, against the edge",
				e.U, e.V, e.Key, e.Path[0], e.Path[len(e.Path)-1])
		}
	}
	return nil
}

// Reachable returns the nodes reachable from start, following edge
// directions in a directed graph, in ascending key order.
func Reachable(g *skeleton.Graph, start int) []int {
	seen := map[int]bool{start: true}
	for queue := []int{start}; len(queue) > 0; queue = queue[1:] {
		for _, n := range g.Successors(queue[0]) {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	out := make([]int, 0, len(seen))
	for _, n := range g.NodeKeys() {
		if seen[n] {
			out = append(out, n)
		}
	}
	return out
}
