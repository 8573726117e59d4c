package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/skeleplex/skeleplex/pkg/cache"
	"github.com/skeleplex/skeleplex/pkg/errors"
	"github.com/skeleplex/skeleplex/pkg/io"
	"github.com/skeleplex/skeleplex/pkg/observability"
	"github.com/skeleplex/skeleplex/pkg/pixelgraph"
	"github.com/skeleplex/skeleplex/pkg/sample"
	"github.com/skeleplex/skeleplex/pkg/skeleton"
	"github.com/skeleplex/skeleplex/pkg/skeleton/transform"
	"github.com/skeleplex/skeleplex/pkg/volume"
)

// Runner executes pipeline stages with caching.
//
// A Runner holds no per-run state; several goroutines may use one Runner
// with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Tracer turns masks into branches. Nil means pixelgraph.Tracer.
	Tracer skeleton.Skeletonizer
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// means cache.DefaultKeyer and a nil logger log.Default().
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		Tracer: pixelgraph.Tracer{Logger: logger},
	}
}

// OpenCache opens the backend selected by opts, together with a keyer that
// applies opts.Prefix.
func OpenCache(ctx context.Context, opts CacheOptions) (cache.Cache, cache.Keyer, error) {
	keyer := cache.NewDefaultKeyer()
	if opts.Prefix != "" {
		keyer = cache.NewScopedKeyer(keyer, opts.Prefix)
	}
	switch {
	case opts.Disabled:
		return cache.NewNullCache(), keyer, nil
	case opts.RedisAddr != "":
		c, err := cache.NewRedisCache(ctx, opts.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return c, keyer, nil
	}
	dir := opts.Dir
	if dir == "" {
		d, err := cache.DefaultDir()
		if err != nil {
			return nil, nil, fmt.Errorf("locate cache directory: %w", err)
		}
		dir = d
	}
	c, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, nil, err
	}
	return c, keyer, nil
}

// Execute runs every enabled stage: build, orient, sample (when a volume
// is configured) and render (when formats are requested).
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	result := &Result{RunID: uuid.NewString()}
	logger := r.Logger.With("run", result.RunID[:8])
	opts.Logger = logger

	start := time.Now()
	g, hit, err := r.Build(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	result.Graph = g
	result.GraphHash = graphHash(g)
	result.Stats.BuildTime = time.Since(start)
	result.Stats.NodeCount = g.NodeCount()
	result.Stats.EdgeCount = g.EdgeCount()
	result.CacheInfo.BuildHit = hit
	logger.Info("built skeleton graph",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"cached", hit,
		"duration", result.Stats.BuildTime)

	work := g
	if !opts.Orient.Skip {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start = time.Now()
		d, report, hit, err := r.Orient(ctx, g, opts)
		if err != nil {
			return nil, fmt.Errorf("orient: %w", err)
		}
		result.Oriented, result.Report = d, report
		result.Stats.OrientTime = time.Since(start)
		result.CacheInfo.OrientHit = hit
		work = d
		logger.Info("oriented skeleton graph",
			"edges", d.EdgeCount(),
			"cached", hit,
			"duration", result.Stats.OrientTime)
	}

	if !opts.Sample.Skip && len(opts.Input.Volume) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start = time.Now()
		vol, err := volume.LoadSlices(opts.Input.Volume)
		if err != nil {
			return nil, fmt.Errorf("sample: %w", err)
		}
		sections, hit, err := r.Sample(ctx, work, vol, opts)
		if err != nil {
			return nil, fmt.Errorf("sample: %w", err)
		}
		result.Sections = sections
		result.Stats.SampleTime = time.Since(start)
		result.CacheInfo.SampleHit = hit
		logger.Info("sampled cross sections",
			"edges", len(sections),
			"positions", len(opts.SamplePositions()),
			"cached", hit,
			"duration", result.Stats.SampleTime)
	}

	if len(opts.Render.Formats) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start = time.Now()
		artifacts, err := Render(ctx, work, opts)
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		result.Artifacts = artifacts
		result.Stats.RenderTime = time.Since(start)
		logger.Info("rendered diagrams",
			"formats", opts.Render.Formats,
			"duration", result.Stats.RenderTime)
	}
	return result, nil
}

// Build constructs the skeleton graph from opts.Input: a branch table when
// Branches is set, otherwise the traced mask slices. The boolean reports a
// cache hit.
func (r *Runner) Build(ctx context.Context, opts Options) (*skeleton.Graph, bool, error) {
	logger := r.logger(opts)
	in := opts.Input
	if in.Branches == "" && len(in.Mask) == 0 {
		return nil, false, errors.New(errors.ErrCodeInvalidInput, "no input: set a mask or a branch table")
	}

	source, hash, err := inputHash(in)
	if err != nil {
		return nil, false, err
	}
	key := r.Keyer.GraphKey(hash, cache.GraphKeyOpts{
		MaxKnots: opts.Build.MaxKnots,
		Tracer:   fmt.Sprintf("%T", r.tracer()),
	})
	if data, ok := r.load(ctx, "graph", key, opts.Refresh); ok {
		if g, err := io.Decode(data); err == nil {
			return g, true, nil
		}
		logger.Warn("discarding unreadable cached graph", "key", key)
	}

	hooks := observability.Pipeline()
	hooks.OnBuildStart(ctx, source)
	start := time.Now()
	g, err := r.build(ctx, in, skeleton.BuildOptions{MaxKnots: opts.Build.MaxKnots, Logger: logger})
	if err != nil {
		hooks.OnBuildComplete(ctx, source, 0, 0, time.Since(start), err)
		return nil, false, err
	}
	hooks.OnBuildComplete(ctx, source, g.NodeCount(), g.EdgeCount(), time.Since(start), nil)

	if data, err := io.Encode(g); err == nil {
		r.store(ctx, "graph", key, data, cache.GraphTTL)
	}
	return g, false, nil
}

func (r *Runner) build(ctx context.Context, in InputOptions, opts skeleton.BuildOptions) (*skeleton.Graph, error) {
	if in.Branches != "" {
		skel, err := io.ImportBranches(in.Branches)
		if err != nil {
			return nil, err
		}
		return skeleton.FromBranches(skel.Nodes, skel.Branches, opts)
	}
	vol, err := volume.LoadSlices(in.Mask)
	if err != nil {
		return nil, err
	}
	return skeleton.FromMask(ctx, volume.MaskFromVolume(vol, in.Threshold), r.tracer(), opts)
}

// orientEntry is the cached result of an orientation. The report is kept
// so a cache hit can repeat the warnings of the original run.
type orientEntry struct {
	Oriented json.RawMessage         `json:"oriented"`
	Report   *transform.OrientReport `json:"report"`
}

// Orient orients g from the configured root. On a cache hit the stored
// report is returned and its warnings are logged again.
func (r *Runner) Orient(ctx context.Context, g *skeleton.Graph, opts Options) (*skeleton.Graph, *transform.OrientReport, bool, error) {
	logger := r.logger(opts)
	root, err := ResolveRoot(g, opts.Orient)
	if err != nil {
		return nil, nil, false, err
	}

	key := r.Keyer.OrientKey(graphHash(g), cache.OrientKeyOpts{Root: root, BreakCycles: opts.Orient.BreakCycles})
	if data, ok := r.load(ctx, "orient", key, opts.Refresh); ok {
		if d, report, err := decodeOrientEntry(data); err == nil {
			report.Warn(logger.With("cached", true))
			return d, report, true, nil
		}
		logger.Warn("discarding unreadable cached orientation", "key", key)
	}

	hooks := observability.Pipeline()
	hooks.OnOrientStart(ctx, root, g.EdgeCount())
	start := time.Now()
	d, report, err := transform.Orient(g, root, transform.OrientOptions{
		BreakCycles: opts.Orient.BreakCycles,
		Logger:      logger,
	})
	if err != nil {
		hooks.OnOrientComplete(ctx, root, 0, 0, time.Since(start), err)
		return nil, nil, false, err
	}
	hooks.OnOrientComplete(ctx, root, len(report.Dropped), len(report.Flipped), time.Since(start), nil)

	if data, err := encodeOrientEntry(d, report); err == nil {
		r.store(ctx, "orient", key, data, cache.GraphTTL)
	}
	return d, report, false, nil
}

func encodeOrientEntry(d *skeleton.Graph, report *transform.OrientReport) ([]byte, error) {
	graph, err := io.Encode(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(orientEntry{Oriented: graph, Report: report})
}

func decodeOrientEntry(data []byte) (*skeleton.Graph, *transform.OrientReport, error) {
	var entry orientEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, nil, err
	}
	if entry.Report == nil || len(entry.Oriented) == 0 {
		return nil, nil, errors.New(errors.ErrCodeDecodeFailed, "cached orientation is incomplete")
	}
	d, err := io.Decode(entry.Oriented)
	if err != nil {
		return nil, nil, err
	}
	return d, entry.Report, nil
}

// ResolveRoot picks the orientation root: the node nearest to RootNear
// when it is set, otherwise Root.
func ResolveRoot(g *skeleton.Graph, opts OrientOptions) (int, error) {
	if len(opts.RootNear) == 0 {
		return opts.Root, nil
	}
	if len(opts.RootNear) != 3 {
		return 0, errors.New(errors.ErrCodeInvalidOption, "root_near needs 3 coordinates, got %d", len(opts.RootNear))
	}
	p := r3.Vec{X: opts.RootNear[0], Y: opts.RootNear[1], Z: opts.RootNear[2]}
	key, ok := g.NearestNode(p)
	if !ok {
		return 0, errors.New(errors.ErrCodeNodeNotFound, "graph has no nodes")
	}
	return key, nil
}

// Sample cuts cross sections of vol along every edge of g. The boolean
// reports whether every edge came from the cache.
func (r *Runner) Sample(ctx context.Context, g *skeleton.Graph, vol *volume.Volume, opts Options) (map[skeleton.EdgeKey]*volume.Volume, bool, error) {
	positions := opts.SamplePositions()
	cs := opts.CrossSectionOptions()

	raw, err := vol.MarshalBinary()
	if err != nil {
		return nil, false, err
	}
	volHash := cache.Hash(raw)
	gHash := graphHash(g)

	hooks := observability.Pipeline()
	hooks.OnSampleStart(ctx, len(positions))
	start := time.Now()

	out := make(map[skeleton.EdgeKey]*volume.Volume, g.EdgeCount())
	allHit := true
	for _, e := range g.Edges() {
		if err := ctx.Err(); err != nil {
			hooks.OnSampleComplete(ctx, len(positions), time.Since(start), err)
			return nil, false, err
		}
		key := r.Keyer.SectionsKey(gHash, volHash, cache.SectionsKeyOpts{
			Edge:        [3]int{e.U, e.V, e.Key},
			Positions:   positions,
			GridShape:   cs.GridShape,
			GridSpacing: cs.GridSpacing,
			FrameMethod: string(cs.FrameMethod),
			Order:       cs.Order,
			Fill:        cs.Fill,
		})
		if data, ok := r.load(ctx, "sections", key, opts.Refresh); ok {
			var v volume.Volume
			if err := v.UnmarshalBinary(data); err == nil {
				out[e.EdgeKey()] = &v
				continue
			}
		}
		allHit = false

		v, err := sample.SampleCrossSections(ctx, vol, e.Spline, positions, cs)
		if err != nil {
			err = fmt.Errorf("edge %d-%d (key %d): %w", e.U, e.V, e.Key, err)
			hooks.OnSampleComplete(ctx, len(positions), time.Since(start), err)
			return nil, false, err
		}
		out[e.EdgeKey()] = v
		if data, err := v.MarshalBinary(); err == nil {
			r.store(ctx, "sections", key, data, cache.SectionsTTL)
		}
	}
	hooks.OnSampleComplete(ctx, len(positions), time.Since(start), nil)
	return out, allHit && len(out) > 0, nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) logger(opts Options) *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return r.Logger
}

func (r *Runner) tracer() skeleton.Skeletonizer {
	if r.Tracer == nil {
		return pixelgraph.Tracer{Logger: r.Logger}
	}
	return r.Tracer
}

// load reads a cache entry. Read failures are logged and treated as misses.
func (r *Runner) load(ctx context.Context, kind, key string, refresh bool) ([]byte, bool) {
	if refresh {
		return nil, false
	}
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "kind", kind, "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, kind)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, kind)
	return data, true
}

func (r *Runner) store(ctx context.Context, kind, key string, data []byte, ttl time.Duration) {
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "kind", kind, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, kind, len(data))
}

// graphHash hashes the serialized graph. Graphs that cannot be encoded
// hash to the empty string and are never found in the cache.
func graphHash(g *skeleton.Graph) string {
	data, err := io.Encode(g)
	if err != nil {
		return ""
	}
	return cache.Hash(data)
}

// inputHash names the build input and hashes its content.
func inputHash(in InputOptions) (string, string, error) {
	if in.Branches != "" {
		data, err := readInput(in.Branches)
		if err != nil {
			return "", "", err
		}
		return in.Branches, cache.Hash(data), nil
	}
	h := make([]byte, 0, 64*len(in.Mask)+32)
	for _, path := range in.Mask {
		data, err := readInput(path)
		if err != nil {
			return "", "", err
		}
		h = append(h, cache.Hash(data)...)
	}
	h = fmt.Appendf(h, "threshold=%g", in.Threshold)
	source := in.Mask[0]
	if len(in.Mask) > 1 {
		source = fmt.Sprintf("%s (+%d slices)", in.Mask[0], len(in.Mask)-1)
	}
	return source, cache.Hash(h), nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "input %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}
	return data, nil
}
