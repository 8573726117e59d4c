package pipeline

import (
	"context"
	"fmt"

	"github.com/skeleplex/skeleplex/pkg/io"
	"github.com/skeleplex/skeleplex/pkg/render/nodelink"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
)

// pngScale is the rasterization factor used for PNG output.
const pngScale = 2.0

// Render produces one artifact per requested format. DOT and JSON need no
// external tools; SVG uses the embedded Graphviz and PNG/PDF additionally
// need rsvg-convert on PATH.
func Render(ctx context.Context, g *skeleton.Graph, opts Options) (map[string][]byte, error) {
	dot := nodelink.ToDOT(g, NodelinkOptions(opts.Render))

	var svg []byte
	svgOnce := func() ([]byte, error) {
		if svg != nil {
			return svg, nil
		}
		data, err := nodelink.RenderSVG(ctx, dot)
		if err != nil {
			return nil, err
		}
		svg = data
		return svg, nil
	}

	artifacts := make(map[string][]byte, len(opts.Render.Formats))
	for _, format := range opts.Render.Formats {
		var data []byte
		var err error

		switch format {
		case FormatDOT:
			data = []byte(dot)
		case FormatSVG:
			data, err = svgOnce()
		case FormatPNG:
			data, err = nodelink.RenderPNG(ctx, dot, pngScale)
		case FormatPDF:
			data, err = nodelink.RenderPDF(ctx, dot)
		case FormatJSON:
			data, err = io.Encode(g)
		default:
			return nil, fmt.Errorf("unsupported format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

// NodelinkOptions converts the render section into diagram options.
func NodelinkOptions(o RenderOptions) nodelink.Options {
	opts := nodelink.DefaultOptions()
	opts.Detailed = o.Detailed
	opts.Spatial = o.Spatial
	opts.Axes = o.Axes
	if o.Scale > 0 {
		opts.Scale = o.Scale
	}
	return opts
}
