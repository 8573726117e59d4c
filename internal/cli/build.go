package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skeleplex/skeleplex/pkg/io"
	"github.com/skeleplex/skeleplex/pkg/pipeline"
)

type buildOpts struct {
	output    string
	threshold float64
	maxKnots  int
}

// buildCommand creates the build command, which fits a skeleton graph from
// a branch table or a mask.
func (c *CLI) buildCommand() *cobra.Command {
	var opts buildOpts

	cmd := &cobra.Command{
		Use:   "build <branches.json | slice...>",
		Short: "Build a skeleton graph with spline branches",
		Long: `Build fits a cubic B-spline through every branch and writes the skeleton
graph as JSON. The input is either a branch table (a single .json file, as
written by "skeleplex trace" or an external skeletonizer) or a stack of
mask slices, which are traced first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeOpts, err := c.loadOptions()
			if err != nil {
				return err
			}
			if err := applyInput(&pipeOpts, args); err != nil {
				return err
			}
			if cmd.Flags().Changed("threshold") {
				pipeOpts.Input.Threshold = opts.threshold
			}
			if cmd.Flags().Changed("max-knots") {
				pipeOpts.Build.MaxKnots = opts.maxKnots
			}
			if opts.output == "" {
				opts.output = defaultGraphPath(args)
			}
			return c.runBuild(cmd.Context(), pipeOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `output graph file ("-" for stdout, default <input>.graph.json)`)
	cmd.Flags().Float64Var(&opts.threshold, "threshold", pipeline.DefaultThreshold, "mask threshold")
	cmd.Flags().IntVar(&opts.maxKnots, "max-knots", 0, "knots per branch spline (default from config, 4)")

	return cmd
}

// applyInput sets the build input from positional arguments.
func applyInput(opts *pipeline.Options, args []string) error {
	if len(args) == 1 && strings.EqualFold(filepath.Ext(args[0]), ".json") {
		opts.Input.Branches = args[0]
		opts.Input.Mask = nil
		return nil
	}
	paths, err := expandSlices(args)
	if err != nil {
		return err
	}
	opts.Input.Mask = paths
	opts.Input.Branches = ""
	return nil
}

func defaultGraphPath(args []string) string {
	if len(args) == 1 && strings.EqualFold(filepath.Ext(args[0]), ".json") {
		return basePath("", args[0]) + ".graph.json"
	}
	return "skeleton.graph.json"
}

func (c *CLI) runBuild(ctx context.Context, pipeOpts pipeline.Options, opts buildOpts) error {
	if err := pipeOpts.Validate(); err != nil {
		return err
	}
	runner := c.newRunner(ctx, pipeOpts)
	defer runner.Close()

	prog := newProgress(loggerFromContext(ctx))
	g, hit, err := runner.Build(ctx, pipeOpts)
	if err != nil {
		return err
	}
	prog.done("Built skeleton graph")

	data, err := io.Encode(g)
	if err != nil {
		return err
	}
	if err := writeOutput(opts.output, data); err != nil {
		return err
	}
	if opts.output == "-" {
		return nil
	}

	printSuccess("Built skeleton graph")
	printStats(g.NodeCount(), g.EdgeCount(), hit)
	printFile(opts.output)
	printNextStep("Orient it", "skeleplex orient "+opts.output+" --root-near z,y,x")
	return nil
}
