package transform

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/skeleton"
	"github.com/skeleplex/skeleplex/pkg/spline"
)

// directed builds a directed graph with nodes 0..n-1 spaced along x and a
// straight edge for each pair.
func directed(t *testing.T, n int, edges [][2]int) *skeleton.Graph {
	t.Helper()
	g := skeleton.New(true)
	at := func(k int) r3.Vec { return r3.Vec{X: 10 * float64(k), Y: float64(k % 2)} }
	for k := range n {
		require.NoError(t, g.AddNode(skeleton.Node{Key: k, Coordinate: at(k)}))
	}
	for _, e := range edges {
		path := straight(at(e[0]), at(e[1]), 3)
		if e[0] == e[1] {
			path = []r3.Vec{at(e[0]), r3.Add(at(e[0]), r3.Vec{Z: 3}), at(e[0])}
		}
		s, err := spline.Fit(path, spline.DefaultKnots)
		require.NoError(t, err)
		_, err = g.AddEdge(e[0], e[1], path, s)
		require.NoError(t, err)
	}
	return g
}

func TestBreakCycles_NoCycles(t *testing.T) {
	g := directed(t, 3, [][2]int{{0, 1}, {1, 2}})

	removed := BreakCycles(g)

	if len(removed) != 0 {
		t.Errorf("BreakCycles() removed %v, want nothing", removed)
	}
	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount() = %d, want 2", g.EdgeCount())
	}
}

func TestBreakCycles_SimpleCycle(t *testing.T) {
	g := directed(t, 2, [][2]int{{0, 1}, {1, 0}})

	removed := BreakCycles(g)

	if len(removed) != 1 {
		t.Errorf("BreakCycles() removed %d edges, want 1", len(removed))
	}
	if g.EdgeCount() != 1 || !g.IsAcyclic() {
		t.Errorf("EdgeCount() = %d, acyclic = %v; want 1, true", g.EdgeCount(), g.IsAcyclic())
	}
}

func TestBreakCycles_TriangleCycle(t *testing.T) {
	g := directed(t, 3, [][2]int{{0, 1}, {1, 2}, {2, 0}})

	removed := BreakCycles(g)

	want := skeleton.EdgeKey{U: 2, V: 0}
	if len(removed) != 1 || removed[0] != want {
		t.Errorf("BreakCycles() removed %v, want [%v]", removed, want)
	}
	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount() = %d, want 2", g.EdgeCount())
	}
}

func TestBreakCycles_MultipleCyclesAndSelfLoop(t *testing.T) {
	// Two separate cycles: 0<->1 and 2<->3, plus a self-loop on 4.
	g := directed(t, 5, [][2]int{{0, 1}, {1, 0}, {2, 3}, {3, 2}, {4, 4}})

	removed := BreakCycles(g)

	if len(removed) != 3 {
		t.Errorf("BreakCycles() removed %d edges, want 3", len(removed))
	}
	if g.EdgeCount() != 2 || !g.IsAcyclic() {
		t.Errorf("EdgeCount() = %d, acyclic = %v; want 2, true", g.EdgeCount(), g.IsAcyclic())
	}
}

func TestBreakCycles_ParallelEdgesAreNotCycles(t *testing.T) {
	g := directed(t, 2, [][2]int{{0, 1}, {0, 1}})

	if removed := BreakCycles(g); len(removed) != 0 {
		t.Errorf("BreakCycles() removed %v, want nothing", removed)
	}
}

func TestBreakCycles_Undirected(t *testing.T) {
	g := build(t, tNodes(), [][2]int{{0, 1}, {1, 2}, {2, 0}})
	if removed := BreakCycles(g); removed != nil {
		t.Errorf("BreakCycles(undirected) = %v, want nil", removed)
	}
	if g.EdgeCount() != 3 {
		t.Errorf("EdgeCount() = %d, want 3", g.EdgeCount())
	}
}
