package pixelgraph

import (
	"context"
	"slices"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
	"github.com/skeleplex/skeleplex/pkg/volume"
)

// Tracer converts a thin binary mask into nodes and branches. It implements
// skeleton.Skeletonizer. The zero value is ready to use.
type Tracer struct {
	// Logger receives progress messages. Nil means log.Default().
	Logger *log.Logger
}

var _ skeleton.Skeletonizer = Tracer{}

// offsets lists the 26 neighbor displacements in raveled order.
var offsets = func() [][3]int {
	out := make([][3]int, 0, 26)
	for di := -1; di <= 1; di++ {
		for dj := -1; dj <= 1; dj++ {
			for dk := -1; dk <= 1; dk++ {
				if di != 0 || dj != 0 || dk != 0 {
					out = append(out, [3]int{di, dj, dk})
				}
			}
		}
	}
	return out
}()

// pixelGraph is the voxel adjacency of a mask. Voxels are identified by
// their flat index in the mask.
type pixelGraph struct {
	shape     volume.Shape
	voxels    []int         // set voxels, ascending
	neighbors map[int][]int // pruned adjacency, ascending
	seen      map[int]bool  // chain voxels already on a branch
}

func newPixelGraph(mask *volume.Mask) *pixelGraph {
	pg := &pixelGraph{shape: mask.Shape, neighbors: make(map[int][]int), seen: make(map[int]bool)}
	for idx, on := range mask.Data {
		if on {
			pg.voxels = append(pg.voxels, idx)
		}
	}
	for _, v := range pg.voxels {
		i, j, k := mask.Shape.Unravel(v)
		var nbrs []int
		for _, d := range offsets {
			a, b, c := i+d[0], j+d[1], k+d[2]
			if !mask.At(a, b, c) {
				continue
			}
			if shortcut(mask, [3]int{i, j, k}, d) {
				continue
			}
			nbrs = append(nbrs, mask.Shape.Index(a, b, c))
		}
		pg.neighbors[v] = nbrs
	}
	return pg
}

// shortcut reports whether the link from p along d is redundant: some set
// voxel adjacent to both ends is strictly closer to each end than the ends
// are to each other. This removes the diagonal links that thick corners
// and junctions would otherwise add.
func shortcut(mask *volume.Mask, p, d [3]int) bool {
	span := sq(d)
	if span == 1 {
		return false
	}
	for _, e := range offsets {
		if sq(e) >= span {
			continue
		}
		rest := [3]int{d[0] - e[0], d[1] - e[1], d[2] - e[2]}
		if abs(rest[0]) > 1 || abs(rest[1]) > 1 || abs(rest[2]) > 1 {
			continue
		}
		if sq(rest) == 0 || sq(rest) >= span {
			continue
		}
		if mask.At(p[0]+e[0], p[1]+e[1], p[2]+e[2]) {
			return true
		}
	}
	return false
}

func sq(d [3]int) int { return d[0]*d[0] + d[1]*d[1] + d[2]*d[2] }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func (pg *pixelGraph) degree(v int) int { return len(pg.neighbors[v]) }

func (pg *pixelGraph) coordinate(v int) r3.Vec {
	i, j, k := pg.shape.Unravel(v)
	return r3.Vec{X: float64(i), Y: float64(j), Z: float64(k)}
}

// link identifies an undirected voxel adjacency.
type link [2]int

func newLink(a, b int) link {
	if a > b {
		a, b = b, a
	}
	return link{a, b}
}

// cluster is one skeleton node: a connected group of node voxels, or the
// synthetic anchor of an isolated loop.
type cluster struct {
	anchor int // smallest voxel index
	voxels []int
	center r3.Vec
}

// trace is one branch in voxel terms, before node ids are assigned.
type trace struct {
	from, to int // cluster indices
	path     []r3.Vec
}

// Skeletonize traces mask. Voxels are linked to their 26 neighbors; voxels
// with other than two links become nodes, and touching node voxels merge
// into a single node at their centroid. Every chain of two-link voxels
// between nodes becomes a branch whose path runs through the voxel centers,
// starting and ending on the node coordinates. Closed chains that touch no
// node get a node at their lowest voxel and become a self-loop.
//
// Node ids follow the raveled index of each node's lowest voxel, so the
// output is deterministic for a given mask.
func (t Tracer) Skeletonize(ctx context.Context, mask *volume.Mask) (*skeleton.Skeleton, error) {
	logger := t.Logger
	if logger == nil {
		logger = log.Default()
	}
	if mask == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "mask is nil")
	}
	if len(mask.Data) != mask.Shape.Len() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "mask of shape %s holds %d voxels", mask.Shape, len(mask.Data))
	}

	pg := newPixelGraph(mask)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clusters, owner := pg.nodeClusters()
	traces := pg.traceBranches(clusters, owner)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loops := pg.traceLoops(owner, len(clusters))
	for _, l := range loops {
		clusters = append(clusters, l.cluster)
		traces = append(traces, l.trace)
	}

	// renumber clusters by anchor voxel
	order := make([]int, len(clusters))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return clusters[a].anchor - clusters[b].anchor })
	id := make([]int, len(clusters))
	skel := &skeleton.Skeleton{Nodes: make(map[int]r3.Vec, len(clusters))}
	for n, c := range order {
		id[c] = n
		skel.Nodes[n] = clusters[c].center
	}
	for _, tr := range traces {
		skel.Branches = append(skel.Branches, skeleton.Branch{
			Source:      id[tr.from],
			Destination: id[tr.to],
			Path:        tr.path,
		})
	}

	logger.Debug("traced skeleton", "voxels", len(pg.voxels), "nodes", len(skel.Nodes), "branches", len(skel.Branches), "loops", len(loops))
	return skel, nil
}

// nodeClusters groups adjacent node voxels. owner maps every node voxel to
// its cluster index.
func (pg *pixelGraph) nodeClusters() ([]cluster, map[int]int) {
	owner := make(map[int]int)
	var clusters []cluster
	for _, v := range pg.voxels {
		if pg.degree(v) == 2 {
			continue
		}
		if _, seen := owner[v]; seen {
			continue
		}
		c := cluster{anchor: v}
		idx := len(clusters)
		stack := []int{v}
		owner[v] = idx
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			c.voxels = append(c.voxels, u)
			for _, w := range pg.neighbors[u] {
				if pg.degree(w) == 2 {
					continue
				}
				if _, seen := owner[w]; seen {
					continue
				}
				owner[w] = idx
				stack = append(stack, w)
			}
		}
		slices.Sort(c.voxels)
		var sum r3.Vec
		for _, u := range c.voxels {
			sum = r3.Add(sum, pg.coordinate(u))
		}
		c.center = r3.Scale(1/float64(len(c.voxels)), sum)
		clusters = append(clusters, c)
	}
	return clusters, owner
}

// traceBranches walks every chain leaving a node cluster. Each link is
// walked once, so a branch is reported from its lower end only.
func (pg *pixelGraph) traceBranches(clusters []cluster, owner map[int]int) []trace {
	walked := make(map[link]bool)
	var traces []trace
	for ci, c := range clusters {
		for _, v := range c.voxels {
			for _, w := range pg.neighbors[v] {
				if walked[newLink(v, w)] {
					continue
				}
				if o, ok := owner[w]; ok && o == ci {
					continue
				}
				voxels := pg.walk(v, w, owner, walked)
				end := owner[voxels[len(voxels)-1]]
				traces = append(traces, trace{
					from: ci,
					to:   end,
					path: pg.branchPath(voxels, c, clusters[end]),
				})
			}
		}
	}
	return traces
}

// walk follows the chain that starts with the link (from, next) until it
// reaches a node voxel, marking every link on the way. The returned voxels
// include both ends.
func (pg *pixelGraph) walk(from, next int, owner map[int]int, walked map[link]bool) []int {
	voxels := []int{from, next}
	walked[newLink(from, next)] = true
	prev, cur := from, next
	for {
		if _, isNode := owner[cur]; isNode {
			return voxels
		}
		pg.seen[cur] = true
		nbrs := pg.neighbors[cur]
		step := nbrs[0]
		if step == prev {
			step = nbrs[1]
		}
		walked[newLink(cur, step)] = true
		voxels = append(voxels, step)
		prev, cur = cur, step
	}
}

// branchPath converts a voxel chain into a path whose ends sit on the node
// coordinates of the clusters it connects.
func (pg *pixelGraph) branchPath(voxels []int, from, to cluster) []r3.Vec {
	path := make([]r3.Vec, 0, len(voxels)+2)
	if len(from.voxels) > 1 {
		path = append(path, from.center)
	}
	for _, v := range voxels {
		path = append(path, pg.coordinate(v))
	}
	if len(to.voxels) > 1 {
		path = append(path, to.center)
	}
	return path
}

type loop struct {
	cluster cluster
	trace   trace
}

// traceLoops finds closed chains of two-link voxels that no node touches.
// Each gets a synthetic node at its lowest voxel and becomes a self-loop
// from that node back to itself.
func (pg *pixelGraph) traceLoops(owner map[int]int, next int) []loop {
	var loops []loop
	for _, v := range pg.voxels {
		if _, isNode := owner[v]; isNode || pg.seen[v] {
			continue
		}
		voxels := []int{v}
		pg.seen[v] = true
		prev, cur := v, pg.neighbors[v][0]
		for cur != v {
			voxels = append(voxels, cur)
			pg.seen[cur] = true
			nbrs := pg.neighbors[cur]
			step := nbrs[0]
			if step == prev {
				step = nbrs[1]
			}
			prev, cur = cur, step
		}
		voxels = append(voxels, v)

		path := make([]r3.Vec, len(voxels))
		for i, u := range voxels {
			path[i] = pg.coordinate(u)
		}
		loops = append(loops, loop{
			cluster: cluster{anchor: v, voxels: []int{v}, center: pg.coordinate(v)},
			trace:   trace{from: next, to: next, path: path},
		})
		next++
	}
	return loops
}
