package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/render"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds coordinates and degree to node labels and arc lengths
	// to edge labels. When false, nodes show their key and edges their
	// multiplicity key.
	Detailed bool

	// Spatial pins every node at its coordinate projected onto Axes and
	// lays the graph out with neato. When false, dot arranges the graph
	// top to bottom, which for an oriented skeleton puts the root first.
	Spatial bool

	// Axes selects the two coordinate axes (0, 1 or 2) of the spatial
	// projection: the first maps to x, the second to y.
	Axes [2]int

	// Scale is the drawing size of one coordinate unit in inches. Zero
	// means 0.1.
	Scale float64
}

// DefaultOptions draws the plane spanned by the last two axes, which is the
// image plane of a z-stack.
func DefaultOptions() Options {
	return Options{Axes: [2]int{2, 1}, Scale: 0.1}
}

// ToDOT converts a skeleton graph to Graphviz DOT source. Undirected graphs
// become a DOT graph and directed ones a digraph. Nodes without incoming
// edges in a directed graph (roots) are filled dark; end points (degree 1)
// are drawn as circles.
func ToDOT(g *skeleton.Graph, opts Options) string {
	if opts.Scale == 0 {
		opts.Scale = 0.1
	}
	kind, arrow := "graph", "--"
	if g.Directed() {
		kind, arrow = "digraph", "->"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s G {\n", kind)
	if opts.Spatial {
		buf.WriteString("  layout=neato;\n")
		buf.WriteString("  overlap=true;\n")
	} else {
		buf.WriteString("  rankdir=TB;\n")
		buf.WriteString("  ranksep=0.5;\n")
		buf.WriteString("  nodesep=0.3;\n")
	}
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.1,0.05\"];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		attrs := []string{fmt.Sprintf("label=%q", nodeLabel(g, n, opts.Detailed))}
		attrs = append(attrs, nodeStyle(g, n.Key)...)
		if opts.Spatial {
			x := axis(n.Coordinate, opts.Axes[0]) * opts.Scale
			y := -axis(n.Coordinate, opts.Axes[1]) * opts.Scale
			attrs = append(attrs, fmt.Sprintf("pos=\"%.4f,%.4f!\"", x, y))
		}
		fmt.Fprintf(&buf, "  n%d [%s];\n", n.Key, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  n%d %s n%d [label=%q];\n", e.U, arrow, e.V, edgeLabel(e, opts.Detailed))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func axis(p r3.Vec, i int) float64 {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	}
	return p.Z
}

func nodeLabel(g *skeleton.Graph, n skeleton.Node, detailed bool) string {
	if !detailed {
		return strconv.Itoa(n.Key)
	}
	c := n.Coordinate
	return fmt.Sprintf("%d\n(%.1f, %.1f, %.1f)\ndegree %d", n.Key, c.X, c.Y, c.Z, g.Degree(n.Key))
}

func nodeStyle(g *skeleton.Graph, key int) []string {
	var attrs []string
	if g.Directed() && g.InDegree(key) == 0 {
		attrs = append(attrs, "fillcolor=\"#333333\"", "fontcolor=white")
	}
	if g.Degree(key) == 1 {
		attrs = append(attrs, "shape=circle")
	}
	return attrs
}

func edgeLabel(e skeleton.Edge, detailed bool) string {
	if !detailed {
		if e.Key == 0 {
			return ""
		}
		return strconv.Itoa(e.Key)
	}
	return fmt.Sprintf("k%d  %.1f", e.Key, e.Spline.ArcLength())
}

// RenderSVG renders DOT source to SVG with the Graphviz engine compiled
// into the binary. The engine is picked by the source's layout attribute
// and defaults to dot.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the root element so the drawing scales with
// its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}

// RenderPDF renders DOT source as PDF via SVG. Requires rsvg-convert.
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders DOT source as PNG via SVG. Requires rsvg-convert.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
