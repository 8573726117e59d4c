// Package render converts rendered skeleton diagrams between formats.
//
// [ToPDF] and [ToPNG] turn an SVG into PDF or PNG with the external
// rsvg-convert tool from librsvg. The diagrams themselves come from the
// [nodelink] subpackage.
//
//	svg, err := nodelink.RenderSVG(nodelink.ToDOT(g, nodelink.Options{}))
//	png, err := render.ToPNG(svg, 2.0)
package render
