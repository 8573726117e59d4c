package cli

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skeleplex/skeleplex/pkg/io"
	"github.com/skeleplex/skeleplex/pkg/pipeline"
	"github.com/skeleplex/skeleplex/pkg/pixelgraph"
	"github.com/skeleplex/skeleplex/pkg/volume"
)

type traceOpts struct {
	output    string
	threshold float64
}

// traceCommand creates the trace command, which reduces a thin skeleton
// mask to a branch table without fitting splines.
func (c *CLI) traceCommand() *cobra.Command {
	opts := traceOpts{output: "branches.json"}

	cmd := &cobra.Command{
		Use:   "trace <slice>...",
		Short: "Trace a thin skeleton mask into a branch table",
		Long: `Trace reads a stack of 2D images (PNG or TIFF, one per z-slice) holding a
one-voxel-thin skeleton, and writes the nodes and branch paths it finds as
a branch table that "skeleplex build" accepts.

Glob patterns are expanded in lexical order:

  skeleplex trace 'mask/slice_*.tiff' -o branches.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := c.loadOptions()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threshold") {
				opts.threshold = loaded.Input.Threshold
			}
			paths, err := expandSlices(args)
			if err != nil {
				return err
			}
			return runTrace(cmd.Context(), paths, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", opts.output, `output branch table ("-" for stdout)`)
	cmd.Flags().Float64Var(&opts.threshold, "threshold", pipeline.DefaultThreshold, "voxels brighter than this are part of the skeleton")

	return cmd
}

func runTrace(ctx context.Context, paths []string, opts traceOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	vol, err := volume.LoadSlices(paths)
	if err != nil {
		return err
	}
	mask := volume.MaskFromVolume(vol, opts.threshold)
	logger.Debug("loaded mask", "shape", vol.Shape, "voxels", mask.Count())

	skel, err := pixelgraph.Tracer{Logger: logger}.Skeletonize(ctx, mask)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Traced %d branches", len(skel.Branches)))

	var buf bytes.Buffer
	if err := io.WriteBranches(skel, &buf); err != nil {
		return err
	}
	if err := writeOutput(opts.output, buf.Bytes()); err != nil {
		return err
	}
	if opts.output == "-" {
		return nil
	}

	printSuccess("Traced %d slices", len(paths))
	printStats(len(skel.Nodes), len(skel.Branches), false)
	printFile(opts.output)
	printNextStep("Fit splines", "skeleplex build "+opts.output)
	return nil
}
