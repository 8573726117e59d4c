package pixelgraph

import (
	"bytes"
	"context"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/io"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
	"github.com/skeleplex/skeleplex/pkg/skeleton/transform"
	"github.com/skeleplex/skeleplex/pkg/volume"
)

func quiet() *log.Logger { return log.New(&bytes.Buffer{}) }

func newMask(t *testing.T, shape volume.Shape) *volume.Mask {
	t.Helper()
	m, err := volume.NewMask(shape)
	require.NoError(t, err)
	return m
}

// drawSegment sets the voxels of an axis-aligned or 45 degree segment in
// the plane i = plane.
func drawSegment(m *volume.Mask, plane int, from, to [2]int) {
	step := func(a, b int) int {
		switch {
		case b > a:
			return 1
		case b < a:
			return -1
		}
		return 0
	}
	dj, dk := step(from[0], to[0]), step(from[1], to[1])
	j, k := from[0], from[1]
	for {
		m.Set(plane, j, k, true)
		if j == to[0] && k == to[1] {
			return
		}
		j, k = j+dj, k+dk
	}
}

// simpleT is a T-shaped skeleton in the plane i = 10 of a 20^3 mask.
func simpleT(t *testing.T) *volume.Mask {
	t.Helper()
	m := newMask(t, volume.Shape{20, 20, 20})
	drawSegment(m, 10, [2]int{10, 5}, [2]int{10, 10})
	drawSegment(m, 10, [2]int{10, 10}, [2]int{10, 15})
	drawSegment(m, 10, [2]int{10, 10}, [2]int{15, 10})
	return m
}

func TestSkeletonize_SimpleT(t *testing.T) {
	skel, err := Tracer{Logger: quiet()}.Skeletonize(context.Background(), simpleT(t))
	require.NoError(t, err)

	assert.Equal(t, map[int]r3.Vec{
		0: {X: 10, Y: 10, Z: 5},
		1: {X: 10, Y: 10, Z: 10},
		2: {X: 10, Y: 10, Z: 15},
		3: {X: 10, Y: 15, Z: 10},
	}, skel.Nodes)
	require.Len(t, skel.Branches, 3)

	ends := make(map[[2]int]int)
	for _, b := range skel.Branches {
		ends[[2]int{b.Source, b.Destination}] = len(b.Path)
		assert.Equal(t, skel.Nodes[b.Source], b.Path[0])
		assert.Equal(t, skel.Nodes[b.Destination], b.Path[len(b.Path)-1])
	}
	assert.Equal(t, map[[2]int]int{{0, 1}: 6, {1, 2}: 6, {1, 3}: 6}, ends)
}

func TestSkeletonize_Diagonal(t *testing.T) {
	m := newMask(t, volume.Shape{1, 8, 8})
	drawSegment(m, 0, [2]int{0, 0}, [2]int{5, 5})

	skel, err := Tracer{Logger: quiet()}.Skeletonize(context.Background(), m)
	require.NoError(t, err)
	assert.Len(t, skel.Nodes, 2)
	require.Len(t, skel.Branches, 1)
	assert.Len(t, skel.Branches[0].Path, 6)
}

func TestSkeletonize_Staircase(t *testing.T) {
	// a 4-connected staircase: corner voxels must not short-circuit
	m := newMask(t, volume.Shape{1, 6, 6})
	for i := range 4 {
		m.Set(0, i, i, true)
		m.Set(0, i, i+1, true)
	}

	skel, err := Tracer{Logger: quiet()}.Skeletonize(context.Background(), m)
	require.NoError(t, err)
	assert.Len(t, skel.Nodes, 2)
	require.Len(t, skel.Branches, 1)
	assert.Len(t, skel.Branches[0].Path, 8)
}

func TestSkeletonize_Loop(t *testing.T) {
	m := newMask(t, volume.Shape{3, 5, 5})
	drawSegment(m, 1, [2]int{1, 1}, [2]int{1, 3})
	drawSegment(m, 1, [2]int{1, 3}, [2]int{3, 3})
	drawSegment(m, 1, [2]int{3, 3}, [2]int{3, 1})
	drawSegment(m, 1, [2]int{3, 1}, [2]int{1, 1})

	skel, err := Tracer{Logger: quiet()}.Skeletonize(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, map[int]r3.Vec{0: {X: 1, Y: 1, Z: 1}}, skel.Nodes)
	require.Len(t, skel.Branches, 1)
	b := skel.Branches[0]
	assert.Equal(t, 0, b.Source)
	assert.Equal(t, 0, b.Destination)
	assert.Len(t, b.Path, 9)
	assert.Equal(t, b.Path[0], b.Path[len(b.Path)-1])
}

func TestSkeletonize_MergesJunctionVoxels(t *testing.T) {
	// two side branches leave the main line from neighboring voxels
	m := newMask(t, volume.Shape{1, 11, 11})
	drawSegment(m, 0, [2]int{5, 0}, [2]int{5, 10})
	drawSegment(m, 0, [2]int{0, 5}, [2]int{4, 5})
	drawSegment(m, 0, [2]int{6, 6}, [2]int{10, 6})

	skel, err := Tracer{Logger: quiet()}.Skeletonize(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, map[int]r3.Vec{
		0: {X: 0, Y: 0, Z: 5},
		1: {X: 0, Y: 5, Z: 0},
		2: {X: 0, Y: 5, Z: 5.5},
		3: {X: 0, Y: 5, Z: 10},
		4: {X: 0, Y: 10, Z: 6},
	}, skel.Nodes)
	require.Len(t, skel.Branches, 4)
	for _, b := range skel.Branches {
		assert.True(t, b.Source == 2 || b.Destination == 2, "every branch touches the merged junction")
		assert.Equal(t, skel.Nodes[b.Source], b.Path[0])
		assert.Equal(t, skel.Nodes[b.Destination], b.Path[len(b.Path)-1])
	}
}

func TestSkeletonize_IsolatedVoxelAndEmpty(t *testing.T) {
	m := newMask(t, volume.Shape{4, 4, 4})
	skel, err := Tracer{Logger: quiet()}.Skeletonize(context.Background(), m)
	require.NoError(t, err)
	assert.Empty(t, skel.Nodes)
	assert.Empty(t, skel.Branches)

	m.Set(2, 1, 3, true)
	skel, err = Tracer{Logger: quiet()}.Skeletonize(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, map[int]r3.Vec{0: {X: 2, Y: 1, Z: 3}}, skel.Nodes)
	assert.Empty(t, skel.Branches)
}

func TestSkeletonize_Errors(t *testing.T) {
	_, err := Tracer{}.Skeletonize(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	bad := &volume.Mask{Shape: volume.Shape{2, 2, 2}, Data: make([]bool, 3)}
	_, err = Tracer{}.Skeletonize(context.Background(), bad)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Tracer{Logger: quiet()}.Skeletonize(ctx, simpleT(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEndToEnd_SimpleT(t *testing.T) {
	ctx := context.Background()
	g, err := skeleton.FromMask(ctx, simpleT(t), Tracer{Logger: quiet()}, skeleton.BuildOptions{Logger: quiet()})
	require.NoError(t, err)
	assert.Equal(t, 4, g.NodeCount())
	assert.Equal(t, 3, g.EdgeCount())

	coords := make(map[r3.Vec]bool)
	for _, n := range g.Nodes() {
		coords[n.Coordinate] = true
	}
	assert.Equal(t, map[r3.Vec]bool{
		{X: 10, Y: 10, Z: 5}:  true,
		{X: 10, Y: 10, Z: 10}: true,
		{X: 10, Y: 10, Z: 15}: true,
		{X: 10, Y: 15, Z: 10}: true,
	}, coords)

	root, ok := g.NearestNode(r3.Vec{X: 10, Y: 10, Z: 5})
	require.True(t, ok)
	d, report, err := transform.Orient(g, root, transform.OrientOptions{Logger: quiet()})
	require.NoError(t, err)
	assert.Empty(t, report.Dropped)
	require.NoError(t, transform.ValidateOrientation(d, root))
	assert.Equal(t, 0, d.InDegree(root))
	assert.Equal(t, 3, d.EdgeCount())

	var buf bytes.Buffer
	require.NoError(t, io.WriteJSON(d, &buf))
	back, err := io.ReadJSON(&buf)
	require.NoError(t, err)
	assert.True(t, d.DeepEqual(back, 0))
}
