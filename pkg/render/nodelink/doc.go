// Package nodelink draws skeleton graphs as node-link diagrams with
// Graphviz.
//
// [ToDOT] produces DOT source and [RenderSVG] lays it out and renders it
// in process:
//
//	dot := nodelink.ToDOT(g, nodelink.DefaultOptions())
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Two layouts are available. The default hands the topology to dot, which
// ranks an oriented skeleton from its root downward. With Options.Spatial
// every node is pinned at its coordinate projected onto two axes, so the
// diagram overlays the image plane; neato then only routes the edges.
//
// PDF and PNG output go through SVG and need rsvg-convert from librsvg.
package nodelink
