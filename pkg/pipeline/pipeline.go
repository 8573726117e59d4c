// Package pipeline runs the skeleton workflow end to end: build a graph
// from a mask or a branch table, orient it from a root, sample the source
// volume across every edge and render the result.
//
// The CLI and any other front end share one [Runner], which owns the cache
// and the logger. Stages can run together through [Runner.Execute] or one by
// one:
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	g, _, err := runner.Build(ctx, opts)
//	d, report, _, err := runner.Orient(ctx, g, opts)
//	sections, _, err := runner.Sample(ctx, d, vol, opts)
//
// Options come from [DefaultOptions], optionally overlaid with a TOML file
// by [LoadConfig] and with environment variables by [Options.ApplyEnv].
package pipeline

import (
	"math"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/sample"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
	"github.com/skeleplex/skeleplex/pkg/skeleton/transform"
	"github.com/skeleplex/skeleplex/pkg/spline"
	"github.com/skeleplex/skeleplex/pkg/volume"
)

// Environment variables read by Options.ApplyEnv.
const (
	EnvRedisAddr = "SKELEPLEX_REDIS_ADDR"
	EnvCacheDir  = "SKELEPLEX_CACHE_DIR"
)

// Default values shared by the CLI and config files.
const (
	DefaultThreshold  = 0.5
	DefaultPositions  = 10
	DefaultConfigFile = "skeleplex.toml"
)

// Output formats for the render stage.
const (
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
	FormatJSON = "json"
)

// ValidFormats is the set of supported render formats.
var ValidFormats = map[string]bool{
	FormatDOT:  true,
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
	FormatJSON: true,
}

// Options configures a pipeline run. The toml tags define the layout of
// skeleplex.toml.
type Options struct {
	Input  InputOptions  `toml:"input"`
	Build  BuildOptions  `toml:"build"`
	Orient OrientOptions `toml:"orient"`
	Sample SampleOptions `toml:"sample"`
	Render RenderOptions `toml:"render"`
	Cache  CacheOptions  `toml:"cache"`

	// Refresh ignores cached results (they are still overwritten).
	Refresh bool `toml:"-"`

	Logger *log.Logger `toml:"-"`
}

// InputOptions names the data a run starts from. Exactly one of Mask and
// Branches drives the build stage; Volume is only needed for sampling.
type InputOptions struct {
	// Mask lists z-slice images of an already thin skeleton mask, in order.
	Mask []string `toml:"mask"`

	// Threshold binarizes Mask: voxels brighter than it are set.
	Threshold float64 `toml:"threshold"`

	// Branches is a branch table document from an external skeletonizer.
	Branches string `toml:"branches"`

	// Volume lists the z-slices of the intensity image to sample.
	Volume []string `toml:"volume"`
}

// BuildOptions configures graph construction.
type BuildOptions struct {
	MaxKnots int `toml:"max_knots"`
}

// OrientOptions selects the orientation root. RootNear, when set, wins
// over Root: the node nearest to that point becomes the root.
type OrientOptions struct {
	Skip     bool      `toml:"skip"`
	Root     int       `toml:"root"`
	RootNear []float64 `toml:"root_near"`

	// BreakCycles removes back edges from graphs that are already directed
	// instead of passing them through unchanged.
	BreakCycles bool `toml:"break_cycles"`
}

// SampleOptions configures cross-section sampling.
type SampleOptions struct {
	Skip bool `toml:"skip"`

	// Count evenly spaced positions from 0 to 1 are sampled per edge,
	// unless Positions lists them explicitly.
	Count     int       `toml:"count"`
	Positions []float64 `toml:"positions"`

	GridShape   [2]int     `toml:"grid_shape"`
	GridSpacing [2]float64 `toml:"grid_spacing"`
	FrameMethod string     `toml:"frame_method"`
	Order       int        `toml:"order"`
	Fill        float64    `toml:"fill"`
	Workers     int        `toml:"workers"`
}

// RenderOptions configures the node-link diagram.
type RenderOptions struct {
	Formats  []string `toml:"formats"`
	Detailed bool     `toml:"detailed"`
	Spatial  bool     `toml:"spatial"`
	Axes     [2]int   `toml:"axes"`
	Scale    float64  `toml:"scale"`
}

// CacheOptions selects the cache backend: Redis when RedisAddr is set,
// otherwise files under Dir, or nothing when Disabled.
type CacheOptions struct {
	Disabled  bool   `toml:"disabled"`
	Dir       string `toml:"dir"`
	RedisAddr string `toml:"redis_addr"`
	Prefix    string `toml:"prefix"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	cs := sample.DefaultCrossSectionOptions()
	return Options{
		Input: InputOptions{Threshold: DefaultThreshold},
		Build: BuildOptions{MaxKnots: spline.DefaultKnots},
		Sample: SampleOptions{
			Count:       DefaultPositions,
			GridShape:   cs.GridShape,
			GridSpacing: cs.GridSpacing,
			FrameMethod: string(cs.FrameMethod),
			Order:       cs.Order,
			Fill:        cs.Fill,
		},
		Render: RenderOptions{
			Formats: []string{FormatSVG},
			Axes:    [2]int{2, 1},
			Scale:   0.1,
		},
	}
}

// ApplyEnv overrides cache settings from the environment.
func (o *Options) ApplyEnv() {
	if v := os.Getenv(EnvRedisAddr); v != "" {
		o.Cache.RedisAddr = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		o.Cache.Dir = v
	}
}

// Validate checks option values. It does not require input files; the
// stages check those when they run.
func (o *Options) Validate() error {
	if len(o.Input.Mask) > 0 && o.Input.Branches != "" {
		return errors.New(errors.ErrCodeInvalidOption, "input: mask and branches are mutually exclusive")
	}
	if o.Build.MaxKnots < spline.MinKnots {
		return errors.New(errors.ErrCodeInvalidOption, "build.max_knots must be at least %d, got %d", spline.MinKnots, o.Build.MaxKnots)
	}
	if n := len(o.Orient.RootNear); n != 0 && n != 3 {
		return errors.New(errors.ErrCodeInvalidOption, "orient.root_near needs 3 coordinates, got %d", n)
	}
	if o.Orient.Root < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "orient.root must be non-negative, got %d", o.Orient.Root)
	}
	if err := o.validateSample(); err != nil {
		return err
	}
	for _, f := range o.Render.Formats {
		if !ValidFormats[f] {
			return errors.New(errors.ErrCodeInvalidOption, "render: invalid format %q (must be one of: dot, svg, png, pdf, json)", f)
		}
	}
	for _, a := range o.Render.Axes {
		if a < 0 || a > 2 {
			return errors.New(errors.ErrCodeInvalidOption, "render.axes must be 0, 1 or 2, got %d", a)
		}
	}
	return nil
}

func (o *Options) validateSample() error {
	s := o.Sample
	if len(s.Positions) == 0 && s.Count < 1 {
		return errors.New(errors.ErrCodeInvalidOption, "sample.count must be positive, got %d", s.Count)
	}
	for _, p := range s.Positions {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return errors.New(errors.ErrCodeInvalidOption, "sample.positions must be finite")
		}
	}
	if err := errors.ValidateShape(s.GridShape[:]...); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOption, err, "sample.grid_shape")
	}
	if err := errors.ValidateSpacing(s.GridSpacing[:]...); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOption, err, "sample.grid_spacing")
	}
	if _, err := spline.ParseFrameMethod(s.FrameMethod); err != nil {
		return err
	}
	if s.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "sample.workers must be non-negative, got %d", s.Workers)
	}
	return errors.ValidateOrder(s.Order)
}

// SamplePositions returns the normalized arc-length positions sampled on
// every edge.
func (o *Options) SamplePositions() []float64 {
	if len(o.Sample.Positions) > 0 {
		return slices.Clone(o.Sample.Positions)
	}
	return spline.Linspace(0, 1, o.Sample.Count)
}

// CrossSectionOptions converts the sample section into sampler options.
func (o *Options) CrossSectionOptions() sample.CrossSectionOptions {
	method, _ := spline.ParseFrameMethod(o.Sample.FrameMethod)
	return sample.CrossSectionOptions{
		GridShape:   o.Sample.GridShape,
		GridSpacing: o.Sample.GridSpacing,
		FrameMethod: method,
		Order:       o.Sample.Order,
		Fill:        o.Sample.Fill,
		Workers:     o.Sample.Workers,
	}
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string

	Graph     *skeleton.Graph
	GraphHash string

	// Oriented and Report are nil when orientation was skipped.
	Oriented *skeleton.Graph
	Report   *transform.OrientReport

	// Sections holds one stack of cross sections per edge of the oriented
	// graph (or of Graph when orientation was skipped).
	Sections map[skeleton.EdgeKey]*volume.Volume

	// Artifacts holds rendered diagrams keyed by format.
	Artifacts map[string][]byte

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount  int
	EdgeCount  int
	BuildTime  time.Duration
	OrientTime time.Duration
	SampleTime time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	BuildHit  bool
	OrientHit bool
	SampleHit bool // every edge's sections came from the cache
}
