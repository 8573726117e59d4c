package skeleton

import (
	"maps"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/spline"
)

// Node is a skeleton vertex: a junction, an end point, or a synthetic node
// placed on an isolated loop.
type Node struct {
	Key        int    // Unique non-negative identifier
	Coordinate r3.Vec // Position in voxel coordinates (z, y, x order of the source volume)
}

// EdgeKey identifies an edge: its two end nodes and a multiplicity key that
// separates parallel edges between the same pair.
type EdgeKey struct {
	U, V, Key int
}

// Reverse returns the key with its end nodes swapped.
func (k EdgeKey) Reverse() EdgeKey { return EdgeKey{U: k.V, V: k.U, Key: k.Key} }

// Edge is a branch of the skeleton. Path runs from U to V and Spline is fit
// through Path in the same order; the two must never disagree.
type Edge struct {
	U, V   int
	Key    int
	Path   []r3.Vec
	Spline *spline.B3Spline
}

// EdgeKey returns the key identifying e.
func (e Edge) EdgeKey() EdgeKey { return EdgeKey{U: e.U, V: e.V, Key: e.Key} }

// IsSelfLoop reports whether both ends of e are the same node.
func (e Edge) IsSelfLoop() bool { return e.U == e.V }

// Other returns the end of e opposite to node.
func (e Edge) Other(node int) int {
	if e.U == node {
		return e.V
	}
	return e.U
}

// Graph is a skeleton multigraph. Nodes and edges are stored in
// index-addressed arenas; adjacency is derived on demand.
//
// Parallel edges and self-loops are distinct edges and are never merged.
// In an undirected graph the edge (u, v, k) is the same edge as (v, u, k).
//
// The zero value is not usable - use New. A Graph is not safe for concurrent
// mutation.
type Graph struct {
	directed bool

	nodes     []Node
	nodeIndex map[int]int

	edges     []Edge
	edgeIndex map[EdgeKey]int // normalized key -> arena index
}

// New creates an empty graph.
func New(directed bool) *Graph {
	return &Graph{
		directed:  directed,
		nodeIndex: make(map[int]int),
		edgeIndex: make(map[EdgeKey]int),
	}
}

// Directed reports whether edges have a direction.
func (g *Graph) Directed() bool { return g.directed }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

func (g *Graph) normalize(k EdgeKey) EdgeKey {
	if !g.directed && k.U > k.V {
		return k.Reverse()
	}
	return k
}

// AddNode inserts n. Keys must be non-negative and unique.
func (g *Graph) AddNode(n Node) error {
	if n.Key < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "node key must be non-negative, got %d", n.Key)
	}
	if _, exists := g.nodeIndex[n.Key]; exists {
		return errors.New(errors.ErrCodeInvalidInput, "duplicate node key %d", n.Key)
	}
	g.nodeIndex[n.Key] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return nil
}

// NewNodeKey returns a key not yet used by any node: one more than the
// largest key, or 0 for an empty graph.
func (g *Graph) NewNodeKey() int {
	if len(g.nodes) == 0 {
		return 0
	}
	return slices.Max(slices.Collect(maps.Keys(g.nodeIndex))) + 1
}

// HasNode reports whether a node with the given key exists.
func (g *Graph) HasNode(key int) bool {
	_, ok := g.nodeIndex[key]
	return ok
}

// Node returns the node with the given key.
func (g *Graph) Node(key int) (Node, bool) {
	i, ok := g.nodeIndex[key]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// NodeKeys returns all node keys in ascending order.
func (g *Graph) NodeKeys() []int {
	return slices.Sorted(maps.Keys(g.nodeIndex))
}

// Nodes returns all nodes in ascending key order.
func (g *Graph) Nodes() []Node {
	out := slices.Clone(g.nodes)
	slices.SortFunc(out, func(a, b Node) int { return a.Key - b.Key })
	return out
}

// NodeCoordinates returns node coordinates in ascending key order, matching
// NodeKeys.
func (g *Graph) NodeCoordinates() []r3.Vec {
	nodes := g.Nodes()
	out := make([]r3.Vec, len(nodes))
	for i, n := range nodes {
		out[i] = n.Coordinate
	}
	return out
}

// NearestNode returns the key of the node closest to p. Ties go to the
// smallest key. It returns false for an empty graph.
func (g *Graph) NearestNode(p r3.Vec) (int, bool) {
	best, bestDist, found := 0, 0.0, false
	for _, n := range g.Nodes() {
		d := r3.Norm(r3.Sub(n.Coordinate, p))
		if !found || d < bestDist {
			best, bestDist, found = n.Key, d, true
		}
	}
	return best, found
}

// SetNodeCoordinate moves an existing node.
func (g *Graph) SetNodeCoordinate(key int, c r3.Vec) error {
	i, ok := g.nodeIndex[key]
	if !ok {
		return errors.New(errors.ErrCodeNodeNotFound, "node %d not found", key)
	}
	g.nodes[i].Coordinate = c
	return nil
}

// AddEdge inserts an edge from u to v with the next free multiplicity key
// and returns its key. The multiplicity key is the number of edges already
// joining u and v, raised until it is unused.
func (g *Graph) AddEdge(u, v int, path []r3.Vec, s *spline.B3Spline) (EdgeKey, error) {
	k := EdgeKey{U: u, V: v, Key: g.parallelCount(u, v)}
	for g.HasEdge(k) {
		k.Key++
	}
	if err := g.InsertEdge(Edge{U: u, V: v, Key: k.Key, Path: path, Spline: s}); err != nil {
		return EdgeKey{}, err
	}
	return k, nil
}

// InsertEdge inserts e with its multiplicity key as given. Both ends must
// exist, the path must hold at least two finite points, a spline must be
// attached, and the key must not be taken.
func (g *Graph) InsertEdge(e Edge) error {
	if !g.HasNode(e.U) {
		return errors.New(errors.ErrCodeNodeNotFound, "edge (%d, %d): node %d not found", e.U, e.V, e.U)
	}
	if !g.HasNode(e.V) {
		return errors.New(errors.ErrCodeNodeNotFound, "edge (%d, %d): node %d not found", e.U, e.V, e.V)
	}
	if e.Key < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "edge (%d, %d): multiplicity key must be non-negative, got %d", e.U, e.V, e.Key)
	}
	if err := errors.ValidatePoints(e.Path, 2); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "edge (%d, %d, %d)", e.U, e.V, e.Key)
	}
	if e.Spline == nil {
		return errors.New(errors.ErrCodeInvalidInput, "edge (%d, %d, %d) has no spline", e.U, e.V, e.Key)
	}
	k := g.normalize(e.EdgeKey())
	if _, exists := g.edgeIndex[k]; exists {
		return errors.New(errors.ErrCodeInvalidInput, "duplicate edge (%d, %d, %d)", e.U, e.V, e.Key)
	}
	g.edgeIndex[k] = len(g.edges)
	g.edges = append(g.edges, e)
	return nil
}

func (g *Graph) parallelCount(u, v int) int {
	n := 0
	for _, e := range g.edges {
		if g.joins(e, u, v) {
			n++
		}
	}
	return n
}

func (g *Graph) joins(e Edge, u, v int) bool {
	if e.U == u && e.V == v {
		return true
	}
	return !g.directed && e.U == v && e.V == u
}

// RemoveEdge deletes the edge identified by k. The remaining edges keep
// their insertion order.
func (g *Graph) RemoveEdge(k EdgeKey) error {
	i, ok := g.edgeIndex[g.normalize(k)]
	if !ok {
		return errors.New(errors.ErrCodeEdgeNotFound, "edge (%d, %d, %d) not found", k.U, k.V, k.Key)
	}
	g.edges = slices.Delete(g.edges, i, i+1)
	g.reindexEdges()
	return nil
}

func (g *Graph) reindexEdges() {
	clear(g.edgeIndex)
	for i, e := range g.edges {
		g.edgeIndex[g.normalize(e.EdgeKey())] = i
	}
}

// HasEdge reports whether the edge identified by k exists.
func (g *Graph) HasEdge(k EdgeKey) bool {
	_, ok := g.edgeIndex[g.normalize(k)]
	return ok
}

// Edge returns the edge identified by (u, v, key). In an undirected graph
// the edge is found in either orientation and returned as stored, so its
// U and V follow the direction of its path.
func (g *Graph) Edge(u, v, key int) (Edge, bool) {
	i, ok := g.edgeIndex[g.normalize(EdgeKey{U: u, V: v, Key: key})]
	if !ok {
		return Edge{}, false
	}
	return g.edges[i], true
}

// Edges returns all edges in insertion order. Paths are shared with the
// graph and must not be modified.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// EdgeKeys returns the keys of all edges in insertion order.
func (g *Graph) EdgeKeys() []EdgeKey {
	out := make([]EdgeKey, len(g.edges))
	for i, e := range g.edges {
		out[i] = e.EdgeKey()
	}
	return out
}

// EdgeSplines returns the spline of every edge.
func (g *Graph) EdgeSplines() map[EdgeKey]*spline.B3Spline {
	out := make(map[EdgeKey]*spline.B3Spline, len(g.edges))
	for _, e := range g.edges {
		out[e.EdgeKey()] = e.Spline
	}
	return out
}

// IncidentEdges returns every edge touching node, ordered by the opposite
// node and then by multiplicity key. A self-loop appears once.
func (g *Graph) IncidentEdges(node int) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.U == node || e.V == node {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b Edge) int {
		if d := a.Other(node) - b.Other(node); d != 0 {
			return d
		}
		return a.Key - b.Key
	})
	return out
}

// Incidence returns the incident edges of every node, built in one pass
// over the edge list. Each list is ordered as by IncidentEdges and a
// self-loop appears once. Nodes without edges have no entry.
func (g *Graph) Incidence() map[int][]Edge {
	out := make(map[int][]Edge, len(g.nodes))
	for _, e := range g.edges {
		out[e.U] = append(out[e.U], e)
		if e.V != e.U {
			out[e.V] = append(out[e.V], e)
		}
	}
	for node, edges := range out {
		slices.SortStableFunc(edges, func(a, b Edge) int {
			if d := a.Other(node) - b.Other(node); d != 0 {
				return d
			}
			return a.Key - b.Key
		})
	}
	return out
}

// Degree returns the number of edge ends at node. A self-loop counts twice.
func (g *Graph) Degree(node int) int {
	d := 0
	for _, e := range g.edges {
		if e.U == node {
			d++
		}
		if e.V == node {
			d++
		}
	}
	return d
}

// OutDegree returns the number of edges leaving node. For an undirected
// graph it equals Degree.
func (g *Graph) OutDegree(node int) int {
	if !g.directed {
		return g.Degree(node)
	}
	d := 0
	for _, e := range g.edges {
		if e.U == node {
			d++
		}
	}
	return d
}

// InDegree returns the number of edges entering node. For an undirected
// graph it equals Degree.
func (g *Graph) InDegree(node int) int {
	if !g.directed {
		return g.Degree(node)
	}
	d := 0
	for _, e := range g.edges {
		if e.V == node {
			d++
		}
	}
	return d
}

// Neighbors returns the distinct nodes sharing an edge with node, in either
// direction, in ascending order.
func (g *Graph) Neighbors(node int) []int {
	return g.adjacent(node, true, true)
}

// Successors returns the distinct targets of edges leaving node. For an
// undirected graph it equals Neighbors.
func (g *Graph) Successors(node int) []int {
	return g.adjacent(node, true, !g.directed)
}

// Predecessors returns the distinct sources of edges entering node. For an
// undirected graph it equals Neighbors.
func (g *Graph) Predecessors(node int) []int {
	return g.adjacent(node, !g.directed, true)
}

func (g *Graph) adjacent(node int, out, in bool) []int {
	seen := make(map[int]struct{})
	for _, e := range g.edges {
		if out && e.U == node {
			seen[e.V] = struct{}{}
		}
		if in && e.V == node {
			seen[e.U] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// ConnectedComponents returns the weakly connected components, each sorted
// ascending, ordered by their smallest key.
func (g *Graph) ConnectedComponents() [][]int {
	adj := make(map[int][]int, len(g.nodes))
	for _, e := range g.edges {
		adj[e.U] = append(adj[e.U], e.V)
		adj[e.V] = append(adj[e.V], e.U)
	}

	seen := make(map[int]bool, len(g.nodes))
	var comps [][]int
	for _, start := range g.NodeKeys() {
		if seen[start] {
			continue
		}
		seen[start] = true
		comp := []int{start}
		for queue := []int{start}; len(queue) > 0; queue = queue[1:] {
			for _, n := range adj[queue[0]] {
				if !seen[n] {
					seen[n] = true
					comp = append(comp, n)
					queue = append(queue, n)
				}
			}
		}
		slices.Sort(comp)
		comps = append(comps, comp)
	}
	return comps
}

// IsAcyclic reports whether the graph has no cycles. For a directed graph
// this means no directed cycle; for an undirected graph the graph must be a
// forest, so parallel edges and self-loops count as cycles.
func (g *Graph) IsAcyclic() bool {
	if !g.directed {
		return len(g.edges) == len(g.nodes)-len(g.ConnectedComponents())
	}

	const (
		white = iota
		gray
		black
	)

	children := make(map[int][]int, len(g.nodes))
	for _, e := range g.edges {
		children[e.U] = append(children[e.U], e.V)
	}

	color := make(map[int]int, len(g.nodes))
	var hasCycle bool

	var dfs func(n int)
	dfs = func(n int) {
		color[n] = gray
		for _, child := range children[n] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				hasCycle = true
			}
			if hasCycle {
				return
			}
		}
		color[n] = black
	}

	for _, n := range g.NodeKeys() {
		if color[n] == white {
			dfs(n)
			if hasCycle {
				return false
			}
		}
	}
	return true
}

// Validate checks that every edge joins existing nodes, carries a path of
// at least two finite points and has a spline.
func (g *Graph) Validate() error {
	for _, e := range g.edges {
		if !g.HasNode(e.U) || !g.HasNode(e.V) {
			return errors.New(errors.ErrCodeNodeNotFound, "edge (%d, %d, %d) references a missing node", e.U, e.V, e.Key)
		}
		if err := errors.ValidatePoints(e.Path, 2); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "edge (%d, %d, %d)", e.U, e.V, e.Key)
		}
		if e.Spline == nil {
			return errors.New(errors.ErrCodeInvalidInput, "edge (%d, %d, %d) has no spline", e.U, e.V, e.Key)
		}
	}
	return nil
}

// Copy returns an independent copy of the graph. Paths are copied; splines
// are immutable and shared.
func (g *Graph) Copy() *Graph {
	c := &Graph{
		directed:  g.directed,
		nodes:     slices.Clone(g.nodes),
		nodeIndex: maps.Clone(g.nodeIndex),
		edges:     make([]Edge, len(g.edges)),
		edgeIndex: maps.Clone(g.edgeIndex),
	}
	for i, e := range g.edges {
		e.Path = slices.Clone(e.Path)
		c.edges[i] = e
	}
	return c
}

// Equal reports whether g and other have the same node keys and the same
// edge keys. Coordinates, paths and splines are not compared, and neither
// is directedness beyond how each graph identifies its own edges; use
// DeepEqual for a full comparison.
func (g *Graph) Equal(other *Graph) bool {
	if g == nil || other == nil {
		return g == other
	}
	if len(g.nodes) != len(other.nodes) || len(g.edges) != len(other.edges) {
		return false
	}
	for k := range g.nodeIndex {
		if !other.HasNode(k) {
			return false
		}
	}
	for _, e := range g.edges {
		if !other.HasEdge(e.EdgeKey()) {
			return false
		}
	}
	return true
}

// DeepEqual reports whether g and other are equal in every attribute:
// directedness, node keys and coordinates, edge keys and orientation,
// paths, and spline coefficients, with values compared to within tol.
func (g *Graph) DeepEqual(other *Graph, tol float64) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.directed != other.directed || !g.Equal(other) {
		return false
	}
	for _, n := range g.nodes {
		o, _ := other.Node(n.Key)
		if !near(n.Coordinate, o.Coordinate, tol) {
			return false
		}
	}
	for _, e := range g.edges {
		o, _ := other.Edge(e.U, e.V, e.Key)
		if o.U != e.U || o.V != e.V || len(o.Path) != len(e.Path) {
			return false
		}
		for i := range e.Path {
			if !near(e.Path[i], o.Path[i], tol) {
				return false
			}
		}
		if !e.Spline.ApproxEqual(o.Spline, tol) {
			return false
		}
	}
	return true
}

func near(a, b r3.Vec, tol float64) bool {
	d := r3.Sub(a, b)
	return math.Abs(d.X) <= tol && math.Abs(d.Y) <= tol && math.Abs(d.Z) <= tol
}
