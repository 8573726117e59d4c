package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skeleplex/skeleplex/pkg/io"
	"github.com/skeleplex/skeleplex/pkg/pipeline"
)

// runCommand creates the run command, which executes every configured
// stage in one go.
func (c *CLI) runCommand() *cobra.Command {
	outDir := "skeleplex-out"

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured pipeline",
		Long: `Run executes build, orient, sample and render as configured in the config
file (see "skeleplex config init"). Results are written to --output:

  graph.json            the built graph
  oriented.json         the oriented graph (unless orient.skip)
  sections/edge_*/      cross sections (when input.volume is set)
  diagram.<format>      one file per render format`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.loadOptions()
			if err != nil {
				return err
			}
			return c.runPipeline(cmd.Context(), opts, outDir)
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", outDir, "output directory")
	return cmd
}

func (c *CLI) runPipeline(ctx context.Context, opts pipeline.Options, outDir string) error {
	runner := c.newRunner(ctx, opts)
	defer runner.Close()

	result, err := runner.Execute(ctx, opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}

	var written []string
	save := func(name string, data []byte) error {
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	data, err := io.Encode(result.Graph)
	if err != nil {
		return err
	}
	if err := save("graph.json", data); err != nil {
		return err
	}
	if result.Oriented != nil {
		if data, err = io.Encode(result.Oriented); err != nil {
			return err
		}
		if err := save("oriented.json", data); err != nil {
			return err
		}
	}
	if len(result.Sections) > 0 {
		dir := filepath.Join(outDir, "sections")
		if err := writeSections(result.Sections, dir, formatRaw); err != nil {
			return err
		}
		written = append(written, dir)
	}
	for _, format := range opts.Render.Formats {
		if err := save("diagram."+format, result.Artifacts[format]); err != nil {
			return err
		}
	}

	printSuccess("Pipeline finished")
	printKeyValue("run", result.RunID)
	printKeyValue("build", stageLine(result.Stats.BuildTime.String(), result.CacheInfo.BuildHit))
	if result.Oriented != nil {
		printKeyValue("orient", stageLine(result.Stats.OrientTime.String(), result.CacheInfo.OrientHit))
	}
	if result.Sections != nil {
		printKeyValue("sample", stageLine(result.Stats.SampleTime.String(), result.CacheInfo.SampleHit))
	}
	printStats(result.Stats.NodeCount, result.Stats.EdgeCount, result.CacheInfo.BuildHit)
	printReport(result.Report)
	for _, path := range written {
		printFile(path)
	}
	return nil
}

func stageLine(d string, cached bool) string {
	if cached {
		return d + " " + styleCached.Render(iconCached)
	}
	return d + " " + styleComputed.Render(iconFresh)
}
