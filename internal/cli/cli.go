// Package cli implements the skeleplex command-line interface.
//
// Every command is a thin wrapper around pkg/pipeline: flags and an
// optional skeleplex.toml are merged into pipeline.Options, and a
// pipeline.Runner (with its cache) does the work.
//
// # Commands
//
//   - trace: reduce a thin mask to a branch table
//   - build: fit a skeleton graph from a mask or a branch table
//   - orient: orient a graph away from a root node
//   - sample: cut cross sections of a volume along every edge
//   - render: draw a graph as a node-link diagram
//   - run: execute every stage configured in skeleplex.toml
//   - info: summarize a graph
//   - cache: manage the result cache
//   - config: print or write the default configuration
//
// All commands support --verbose (-v) for debug-level logging. The logger
// travels in the command context.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/skeleplex/skeleplex/pkg/buildinfo"
	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/observability"
	"github.com/skeleplex/skeleplex/pkg/pipeline"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	verbose    bool
	configPath string
	noCache    bool
	refresh    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "skeleplex",
		Short: "Skeleplex turns skeletonized volumes into oriented curve graphs",
		Long: `Skeleplex builds skeleton graphs with smooth B-spline branches from
binary skeleton masks or branch tables, orients them away from a root and
samples image cross sections perpendicular to every branch.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
				hooks := observability.LogHooks{Logger: c.Logger}
				observability.SetPipelineHooks(hooks)
				observability.SetCacheHooks(hooks)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}
	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: ./"+pipeline.DefaultConfigFile+" when present)")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "disable the result cache")
	root.PersistentFlags().BoolVar(&c.refresh, "refresh", false, "recompute results even when cached")

	root.AddCommand(c.traceCommand())
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.orientCommand())
	root.AddCommand(c.sampleCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.runCommand())
	root.AddCommand(c.infoCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadOptions resolves the options for a command: defaults, then the
// config file, then the environment. Command flags are applied by the
// caller afterwards.
func (c *CLI) loadOptions() (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	path := c.configPath
	if path == "" {
		if _, err := os.Stat(pipeline.DefaultConfigFile); err == nil {
			path = pipeline.DefaultConfigFile
		}
	}
	if path != "" {
		loaded, err := pipeline.LoadConfig(path)
		if err != nil {
			return opts, err
		}
		c.Logger.Debug("loaded config", "path", path)
		opts = loaded
	}
	opts.ApplyEnv()
	if c.noCache {
		opts.Cache.Disabled = true
	}
	opts.Refresh = c.refresh
	opts.Logger = c.Logger
	return opts, nil
}

// newRunner creates a pipeline runner for CLI use. When the configured
// cache cannot be opened the runner falls back to no caching.
func (c *CLI) newRunner(ctx context.Context, opts pipeline.Options) *pipeline.Runner {
	store, keyer, err := pipeline.OpenCache(ctx, opts.Cache)
	if err != nil {
		c.Logger.Warn("cache unavailable, continuing without it", "err", err)
		return pipeline.NewRunner(nil, nil, c.Logger)
	}
	return pipeline.NewRunner(store, keyer, c.Logger)
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatSVG}
	}
	return strings.Split(s, ",")
}

// expandSlices resolves slice arguments: plain paths are kept, glob
// patterns are expanded in lexical order.
func expandSlices(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[") {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "pattern %s", arg)
		}
		if len(matches) == 0 {
			return nil, errors.New(errors.ErrCodeFileNotFound, "no files match %s", arg)
		}
		slices.Sort(matches)
		paths = append(paths, matches...)
	}
	return paths, nil
}

// basePath derives the base output path from the output and input file paths.
// If output is empty, it strips the extension from input.
// If output has a format extension (.svg, .pdf, etc.), it strips that extension.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput opens path for writing, or stdout when path is "-".
func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

// writeOutput writes data to path, or to stdout when path is "-".
func writeOutput(path string, data []byte) (err error) {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = out.Write(data)
	return err
}
