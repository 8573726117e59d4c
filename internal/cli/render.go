package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/io"
	"github.com/skeleplex/skeleplex/pkg/pipeline"
)

type renderOpts struct {
	output   string
	formats  string
	detailed bool
	spatial  bool
	axes     []int
	scale    float64
}

// renderCommand creates the render command for node-link diagrams.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <graph.json>",
		Short: "Render a skeleton graph as a node-link diagram",
		Long: `Render draws the graph with Graphviz. By default the layout is computed
by the dot engine; --spatial pins every node at its projected coordinate
instead, so the diagram keeps the shape of the skeleton.

PNG and PDF output need rsvg-convert on PATH.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeOpts, err := c.loadOptions()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, &pipeOpts.Render); err != nil {
				return err
			}
			if err := pipeOpts.Validate(); err != nil {
				return err
			}
			return runRender(cmd.Context(), args[0], pipeOpts, opts.output)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	f.StringVarP(&opts.formats, "format", "f", "", "output format(s): svg (default), dot, png, pdf, json (comma-separated)")
	f.BoolVar(&opts.detailed, "detailed", false, "label edges with their key and arc length")
	f.BoolVar(&opts.spatial, "spatial", false, "place nodes at their coordinates")
	f.IntSliceVar(&opts.axes, "axes", nil, "coordinate axes projected to x,y with --spatial (default 2,1)")
	f.Float64Var(&opts.scale, "scale", 0, "inches per voxel with --spatial (default 0.1)")

	return cmd
}

func (o *renderOpts) apply(cmd *cobra.Command, r *pipeline.RenderOptions) error {
	f := cmd.Flags()
	if f.Changed("format") || len(r.Formats) == 0 {
		r.Formats = parseFormats(o.formats)
	}
	if f.Changed("detailed") {
		r.Detailed = o.detailed
	}
	if f.Changed("spatial") {
		r.Spatial = o.spatial
	}
	if f.Changed("axes") {
		if len(o.axes) != 2 {
			return errors.New(errors.ErrCodeInvalidOption, "--axes needs 2 values, got %d", len(o.axes))
		}
		r.Axes = [2]int{o.axes[0], o.axes[1]}
	}
	if f.Changed("scale") {
		r.Scale = o.scale
	}
	return nil
}

// runRender renders input to every requested format. A single format goes
// to output (default <input>.<format>); several formats share the base
// path of output.
func runRender(ctx context.Context, input string, opts pipeline.Options, output string) error {
	logger := loggerFromContext(ctx)
	logger.Infof("Rendering %s", input)

	g, err := io.ImportJSON(input)
	if err != nil {
		return err
	}
	logger.Infof("Loaded graph: %d nodes, %d edges", g.NodeCount(), g.EdgeCount())

	artifacts, err := pipeline.Render(ctx, g, opts)
	if err != nil {
		return err
	}

	formats := opts.Render.Formats
	base := basePath(output, input)
	for _, format := range slices.Compact(slices.Clone(formats)) {
		path := fmt.Sprintf("%s.%s", base, format)
		if len(formats) == 1 && output != "" {
			path = output
		}
		if format == pipeline.FormatJSON && path == input {
			path = base + ".rendered.json"
		}
		if err := writeOutput(path, artifacts[format]); err != nil {
			return err
		}
		logger.Debugf("Generated %s: %d bytes", format, len(artifacts[format]))
		printFile(path)
	}
	return nil
}
