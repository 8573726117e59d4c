package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/io"
	"github.com/skeleplex/skeleplex/pkg/pipeline"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
	"github.com/skeleplex/skeleplex/pkg/volume"
)

// formatRaw stores each section stack losslessly in the volume binary
// encoding instead of as 16-bit images.
const formatRaw = "skv"

type sampleOpts struct {
	output      string
	format      string
	count       int
	positions   []float64
	gridShape   []int
	gridSpacing []float64
	frame       string
	order       int
	fill        float64
	workers     int
}

// sampleCommand creates the sample command.
func (c *CLI) sampleCommand() *cobra.Command {
	opts := sampleOpts{output: "sections", format: volume.FormatTIFF}

	cmd := &cobra.Command{
		Use:   "sample <graph.json> <slice>...",
		Short: "Sample image cross sections along every edge",
		Long: `Sample cuts planes perpendicular to each edge spline out of an intensity
volume, given as a stack of z-slices. Every edge gets its own directory
under --output holding one image per sampled position.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeOpts, err := c.loadOptions()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, &pipeOpts.Sample); err != nil {
				return err
			}
			if opts.format != volume.FormatTIFF && opts.format != volume.FormatPNG && opts.format != formatRaw {
				return errors.New(errors.ErrCodeInvalidOption, "invalid format %q (must be tiff, png or skv)", opts.format)
			}
			paths, err := expandSlices(args[1:])
			if err != nil {
				return err
			}
			return c.runSample(cmd.Context(), args[0], paths, pipeOpts, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", opts.output, "output directory")
	f.StringVarP(&opts.format, "format", "f", opts.format, "section format: tiff, png or skv")
	f.IntVarP(&opts.count, "count", "n", pipeline.DefaultPositions, "evenly spaced positions per edge")
	f.Float64SliceVar(&opts.positions, "positions", nil, "explicit positions in [0,1] (overrides --count)")
	f.IntSliceVar(&opts.gridShape, "grid", nil, "cross-section size in samples (rows,cols)")
	f.Float64SliceVar(&opts.gridSpacing, "spacing", nil, "sample spacing in voxels (rows,cols)")
	f.StringVar(&opts.frame, "frame", "", "moving frame: bishop or frenet")
	f.IntVar(&opts.order, "order", 0, "interpolation order 0-5")
	f.Float64Var(&opts.fill, "fill", 0, "value for samples outside the volume")
	f.IntVarP(&opts.workers, "workers", "j", 0, "parallel sampling workers (0 = GOMAXPROCS)")

	return cmd
}

// apply copies the flags the user set onto s.
func (o *sampleOpts) apply(cmd *cobra.Command, s *pipeline.SampleOptions) error {
	f := cmd.Flags()
	if f.Changed("count") {
		s.Count = o.count
	}
	if f.Changed("positions") {
		s.Positions = o.positions
	}
	if f.Changed("grid") {
		if len(o.gridShape) != 2 {
			return errors.New(errors.ErrCodeInvalidOption, "--grid needs 2 values, got %d", len(o.gridShape))
		}
		s.GridShape = [2]int{o.gridShape[0], o.gridShape[1]}
	}
	if f.Changed("spacing") {
		if len(o.gridSpacing) != 2 {
			return errors.New(errors.ErrCodeInvalidOption, "--spacing needs 2 values, got %d", len(o.gridSpacing))
		}
		s.GridSpacing = [2]float64{o.gridSpacing[0], o.gridSpacing[1]}
	}
	if f.Changed("frame") {
		s.FrameMethod = o.frame
	}
	if f.Changed("order") {
		s.Order = o.order
	}
	if f.Changed("fill") {
		s.Fill = o.fill
	}
	if f.Changed("workers") {
		s.Workers = o.workers
	}
	return nil
}

func (c *CLI) runSample(ctx context.Context, input string, slicePaths []string, pipeOpts pipeline.Options, opts sampleOpts) error {
	if err := pipeOpts.Validate(); err != nil {
		return err
	}
	logger := loggerFromContext(ctx)

	g, err := io.ImportJSON(input)
	if err != nil {
		return err
	}
	vol, err := volume.LoadSlices(slicePaths)
	if err != nil {
		return err
	}
	logger.Debug("loaded volume", "shape", vol.Shape)

	runner := c.newRunner(ctx, pipeOpts)
	defer runner.Close()

	prog := newProgress(logger)
	sections, hit, err := runner.Sample(ctx, g, vol, pipeOpts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Sampled %d edges", len(sections)))

	if err := writeSections(sections, opts.output, opts.format); err != nil {
		return err
	}

	printSuccess("Sampled %d positions per edge", len(pipeOpts.SamplePositions()))
	printStats(g.NodeCount(), g.EdgeCount(), hit)
	printFile(opts.output)
	return nil
}

// writeSections stores one directory (or one .skv file) per edge, named
// edge_<u>_<v>_<key>, in edge key order.
func writeSections(sections map[skeleton.EdgeKey]*volume.Volume, dir, format string) error {
	keys := make([]skeleton.EdgeKey, 0, len(sections))
	for k := range sections {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareEdgeKeys)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for _, k := range keys {
		name := fmt.Sprintf("edge_%d_%d_%d", k.U, k.V, k.Key)
		if format == formatRaw {
			data, err := sections[k].MarshalBinary()
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dir, name+"."+formatRaw), data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
			continue
		}
		if _, err := volume.SaveSlices(sections[k], filepath.Join(dir, name), format); err != nil {
			return err
		}
	}
	return nil
}

func compareEdgeKeys(a, b skeleton.EdgeKey) int {
	switch {
	case a.U != b.U:
		return a.U - b.U
	case a.V != b.V:
		return a.V - b.V
	}
	return a.Key - b.Key
}
