package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks reports pipeline and cache events as debug log lines.
type LogHooks struct {
	Logger *log.Logger
}

func (h LogHooks) logger() *log.Logger {
	if h.Logger == nil {
		return log.Default()
	}
	return h.Logger
}

func (h LogHooks) done(msg string, d time.Duration, err error, kv ...any) {
	kv = append(kv, "elapsed", d.Round(time.Millisecond))
	if err != nil {
		h.logger().Debug(msg+" failed", append(kv, "err", err)...)
		return
	}
	h.logger().Debug(msg, kv...)
}

func (h LogHooks) OnBuildStart(_ context.Context, source string) {
	h.logger().Debug("build started", "source", source)
}

func (h LogHooks) OnBuildComplete(_ context.Context, source string, nodes, edges int, d time.Duration, err error) {
	h.done("build", d, err, "source", source, "nodes", nodes, "edges", edges)
}

func (h LogHooks) OnOrientStart(_ context.Context, root, edges int) {
	h.logger().Debug("orientation started", "root", root, "edges", edges)
}

func (h LogHooks) OnOrientComplete(_ context.Context, root, dropped, flipped int, d time.Duration, err error) {
	h.done("orientation", d, err, "root", root, "dropped", dropped, "flipped", flipped)
}

func (h LogHooks) OnSampleStart(_ context.Context, positions int) {
	h.logger().Debug("sampling started", "positions", positions)
}

func (h LogHooks) OnSampleComplete(_ context.Context, positions int, d time.Duration, err error) {
	h.done("sampling", d, err, "positions", positions)
}

func (h LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger().Debug("cache hit", "kind", keyType)
}

func (h LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger().Debug("cache miss", "kind", keyType)
}

func (h LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger().Debug("cache set", "kind", keyType, "bytes", size)
}

var (
	_ PipelineHooks = LogHooks{}
	_ CacheHooks    = LogHooks{}
)
