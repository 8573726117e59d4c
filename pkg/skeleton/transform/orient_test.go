package transform

import (
	"bytes"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
	"github.com/skeleplex/skeleplex/pkg/spline"
)

func straight(from, to r3.Vec, n int) []r3.Vec {
	pts := make([]r3.Vec, n)
	for i, f := range spline.Linspace(0, 1, n) {
		pts[i] = r3.Add(from, r3.Scale(f, r3.Sub(to, from)))
	}
	return pts
}

// build creates an undirected graph; each edge is [u, v] with a straight
// path from u to v.
func build(t *testing.T, nodes map[int]r3.Vec, edges [][2]int) *skeleton.Graph {
	t.Helper()
	branches := make([]skeleton.Branch, len(edges))
	for i, e := range edges {
		branches[i] = skeleton.Branch{Source: e[0], Destination: e[1], Path: straight(nodes[e[0]], nodes[e[1]], 4)}
	}
	g, err := skeleton.FromBranches(nodes, branches, skeleton.BuildOptions{})
	require.NoError(t, err)
	return g
}

func tNodes() map[int]r3.Vec {
	return map[int]r3.Vec{
		0: {X: 10, Y: 0, Z: 0},
		1: {X: 10, Y: 10, Z: 0},
		2: {X: 0, Y: 10, Z: 0},
		3: {X: 20, Y: 10, Z: 0},
	}
}

func quiet() OrientOptions {
	return OrientOptions{Logger: log.New(&bytes.Buffer{})}
}

func assertOriented(t *testing.T, g, d *skeleton.Graph, root int) {
	t.Helper()
	require.True(t, d.Directed())
	if n := d.InDegree(root); n != 0 {
		t.Errorf("InDegree(root) = %d, want 0", n)
	}
	if !d.IsAcyclic() {
		t.Error("oriented graph has a cycle")
	}
	var undirected []int
	for _, comp := range g.ConnectedComponents() {
		if slices.Contains(comp, root) {
			undirected = comp
		}
	}
	if got := Reachable(d, root); !slices.Equal(got, undirected) {
		t.Errorf("Reachable(root) = %v, want %v", got, undirected)
	}
}

func TestOrient_SimpleT(t *testing.T) {
	g := build(t, tNodes(), [][2]int{{0, 1}, {1, 2}, {1, 3}})

	d, report, err := Orient(g, 0, quiet())
	require.NoError(t, err)
	assertOriented(t, g, d, 0)
	require.NoError(t, ValidateOrientation(d, 0))

	assert.Empty(t, report.Dropped)
	assert.Empty(t, report.Flipped)
	assert.Equal(t, []skeleton.EdgeKey{{U: 0, V: 1}, {U: 1, V: 2}, {U: 1, V: 3}}, d.EdgeKeys())
	assert.True(t, g.Equal(skeletonUndirected(t, d)), "orientation of a tree keeps every edge")
}

// skeletonUndirected rebuilds d as an undirected graph for weak comparison.
func skeletonUndirected(t *testing.T, d *skeleton.Graph) *skeleton.Graph {
	t.Helper()
	u := skeleton.New(false)
	for _, n := range d.Nodes() {
		require.NoError(t, u.AddNode(n))
	}
	for _, e := range d.Edges() {
		require.NoError(t, u.InsertEdge(e))
	}
	return u
}

func TestOrient_FlipsBackwardPath(t *testing.T) {
	nodes := tNodes()
	g := skeleton.New(false)
	for _, k := range []int{0, 1, 2, 3} {
		require.NoError(t, g.AddNode(skeleton.Node{Key: k, Coordinate: nodes[k]}))
	}
	// edge 0 -> 1 whose path was recorded from node 1 to node 0
	backward := straight(nodes[1], nodes[0], 4)
	s, err := spline.Fit(backward, spline.DefaultKnots)
	require.NoError(t, err)
	require.NoError(t, g.InsertEdge(skeleton.Edge{U: 0, V: 1, Path: backward, Spline: s}))
	for _, v := range []int{2, 3} {
		p := straight(nodes[1], nodes[v], 4)
		sv, err := spline.Fit(p, spline.DefaultKnots)
		require.NoError(t, err)
		_, err = g.AddEdge(1, v, p, sv)
		require.NoError(t, err)
	}
	before := g.Copy()

	d, report, err := Orient(g, 0, quiet())
	require.NoError(t, err)
	require.NoError(t, ValidateOrientation(d, 0))
	assert.Equal(t, []skeleton.EdgeKey{{U: 0, V: 1}}, report.Flipped)

	e, ok := d.Edge(0, 1, 0)
	require.True(t, ok)
	assert.Equal(t, nodes[0], e.Path[0])
	assert.Equal(t, nodes[1], e.Path[len(e.Path)-1])

	ends, err := e.Spline.Eval([]float64{0, 1}, 0, spline.DefaultTolerance)
	require.NoError(t, err)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(ends[0], nodes[0])), 1e-2)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(ends[1], nodes[1])), 1e-2)

	assert.True(t, g.DeepEqual(before, 0), "Orient must not modify its input")
	assert.False(t, g.Directed())
}

func TestOrient_FromJunction(t *testing.T) {
	g := build(t, tNodes(), [][2]int{{0, 1}, {1, 2}, {1, 3}})

	d, report, err := Orient(g, 1, quiet())
	require.NoError(t, err)
	assertOriented(t, g, d, 1)
	require.NoError(t, ValidateOrientation(d, 1))
	assert.Equal(t, []skeleton.EdgeKey{{U: 1, V: 0}}, report.Flipped)
	assert.Equal(t, []int{0, 2, 3}, d.Successors(1))
}

func TestOrient_DropsNonTreeEdges(t *testing.T) {
	nodes := map[int]r3.Vec{
		0: {}, 1: {X: 10}, 2: {X: 10, Y: 10}, 3: {X: 20},
	}
	// triangle 0-1-2, tail 1-3, parallel edge 1-3 and a self-loop at 3
	g := build(t, nodes, [][2]int{{0, 1}, {1, 2}, {2, 0}, {1, 3}})
	loop := []r3.Vec{{X: 20}, {X: 22, Y: 2}, {X: 24}, {X: 22, Y: -2}, {X: 20}}
	s, err := spline.Fit(loop, spline.DefaultKnots)
	require.NoError(t, err)
	_, err = g.AddEdge(3, 3, loop, s)
	require.NoError(t, err)
	parallel := []r3.Vec{{X: 10}, {X: 15, Y: 3}, {X: 20}}
	s, err = spline.Fit(parallel, spline.DefaultKnots)
	require.NoError(t, err)
	_, err = g.AddEdge(1, 3, parallel, s)
	require.NoError(t, err)

	var buf bytes.Buffer
	d, report, err := Orient(g, 0, OrientOptions{Logger: log.New(&buf)})
	require.NoError(t, err)
	assertOriented(t, g, d, 0)

	want := []skeleton.EdgeKey{{U: 1, V: 2}, {U: 3, V: 3}, {U: 1, V: 3, Key: 1}}
	assert.Equal(t, want, report.Dropped)
	assert.Equal(t, 3, d.EdgeCount())
	assert.Equal(t, 3, strings.Count(buf.String(), "dropping edge"))
}

func TestOrient_DisconnectedFragments(t *testing.T) {
	nodes := tNodes()
	nodes[7] = r3.Vec{X: 50}
	nodes[8] = r3.Vec{X: 60}
	nodes[9] = r3.Vec{X: 70}
	nodes[12] = r3.Vec{X: 90}
	g := build(t, nodes, [][2]int{{0, 1}, {1, 2}, {1, 3}, {7, 8}, {9, 8}})

	var buf bytes.Buffer
	d, report, err := Orient(g, 0, OrientOptions{Logger: log.New(&buf)})
	require.NoError(t, err)
	assertOriented(t, g, d, 0)

	assert.Equal(t, []int{8, 12}, report.FragmentRoots)
	assert.Contains(t, buf.String(), "disconnected fragment")
	assert.Equal(t, []int{7, 8, 9}, Reachable(d, 8))
	assert.Equal(t, 0, d.InDegree(8))
	require.NoError(t, ValidateForest(d, 0))
	assert.Error(t, ValidateOrientation(d, 0), "fragments are not reachable from the root")

	e, ok := d.Edge(8, 9, 0)
	require.True(t, ok)
	assert.Equal(t, nodes[8], e.Path[0])
	assert.Contains(t, report.Flipped, skeleton.EdgeKey{U: 8, V: 9})
}

func TestOrient_AlreadyDirected(t *testing.T) {
	g := build(t, tNodes(), [][2]int{{0, 1}, {1, 2}, {1, 3}})
	d, _, err := Orient(g, 0, quiet())
	require.NoError(t, err)

	var buf bytes.Buffer
	again, report, err := Orient(d, 0, OrientOptions{Logger: log.New(&buf)})
	require.NoError(t, err)
	assert.Same(t, d, again)
	assert.True(t, report.AlreadyDirected)
	assert.Contains(t, buf.String(), "already directed")
}

func TestOrient_BreakCyclesOnDirected(t *testing.T) {
	g := directed(t, 4, [][2]int{{0, 1}, {1, 2}, {2, 0}, {2, 3}})

	var buf bytes.Buffer
	d, report, err := Orient(g, 0, OrientOptions{BreakCycles: true, Logger: log.New(&buf)})
	require.NoError(t, err)
	assert.NotSame(t, g, d)
	assert.Equal(t, 4, g.EdgeCount(), "input is not modified")
	assert.Equal(t, 3, d.EdgeCount())
	assert.True(t, report.AlreadyDirected)
	assert.Equal(t, []skeleton.EdgeKey{{U: 2, V: 0}}, report.Dropped)
	assert.True(t, d.IsAcyclic())
	require.NoError(t, ValidateOrientation(d, 0))
	assert.Contains(t, buf.String(), "only breaking cycles")
	assert.Contains(t, buf.String(), "dropping edge")
}

func TestOrientReport_Warn(t *testing.T) {
	nodes := tNodes()
	nodes[7] = r3.Vec{X: 50}
	nodes[8] = r3.Vec{X: 60}
	g := build(t, nodes, [][2]int{{0, 1}, {1, 2}, {1, 3}, {2, 3}, {7, 8}})

	var live bytes.Buffer
	_, report, err := Orient(g, 0, OrientOptions{Logger: log.New(&live)})
	require.NoError(t, err)

	var replay bytes.Buffer
	report.Warn(log.New(&replay))
	for _, buf := range []*bytes.Buffer{&live, &replay} {
		assert.Equal(t, 1, strings.Count(buf.String(), "dropping edge"))
		assert.Equal(t, 1, strings.Count(buf.String(), "disconnected fragment"))
	}

	var none bytes.Buffer
	(&OrientReport{Root: 0}).Warn(log.New(&none))
	assert.Empty(t, none.String())
}

func TestOrient_MissingRoot(t *testing.T) {
	g := build(t, tNodes(), [][2]int{{0, 1}})
	_, _, err := Orient(g, 42, quiet())
	if !errors.Is(err, errors.ErrCodeNodeNotFound) {
		t.Errorf("Orient(missing root) error = %v, want %s", err, errors.ErrCodeNodeNotFound)
	}
	assert.True(t, errors.IsNotFound(err))
}

func TestValidateOrientation_Errors(t *testing.T) {
	g := build(t, tNodes(), [][2]int{{0, 1}, {1, 2}, {1, 3}})
	assert.Error(t, ValidateOrientation(g, 0), "undirected graph")

	d, _, err := Orient(g, 0, quiet())
	require.NoError(t, err)
	assert.Error(t, ValidateOrientation(d, 1), "root with a parent")
	assert.True(t, errors.IsNotFound(ValidateOrientation(d, 99)))
}
