// Package observability lets an application watch pipeline stages and cache
// traffic without the libraries depending on a metrics backend.
//
// Libraries emit events through the registered hooks; main registers
// implementations once at startup:
//
//	func main() {
//	    observability.SetPipelineHooks(observability.LogHooks{Logger: logger})
//	    // ... run application
//	}
//
// Until then every event goes to a no-op implementation.
package observability

import (
	"context"
	"sync"
	"time"
)

// PipelineHooks receives events from the skeleton pipeline.
type PipelineHooks interface {
	// Build events: source names the input (a mask or branch file).
	OnBuildStart(ctx context.Context, source string)
	OnBuildComplete(ctx context.Context, source string, nodes, edges int, duration time.Duration, err error)

	// Orientation events.
	OnOrientStart(ctx context.Context, root, edges int)
	OnOrientComplete(ctx context.Context, root, dropped, flipped int, duration time.Duration, err error)

	// Cross-section sampling events.
	OnSampleStart(ctx context.Context, positions int)
	OnSampleComplete(ctx context.Context, positions int, duration time.Duration, err error)
}

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnBuildStart(context.Context, string) {}
func (NoopPipelineHooks) OnBuildComplete(context.Context, string, int, int, time.Duration, error) {
}
func (NoopPipelineHooks) OnOrientStart(context.Context, int, int) {}
func (NoopPipelineHooks) OnOrientComplete(context.Context, int, int, int, time.Duration, error) {
}
func (NoopPipelineHooks) OnSampleStart(context.Context, int)                             {}
func (NoopPipelineHooks) OnSampleComplete(context.Context, int, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks. Call it once at
// startup, before any pipeline runs. nil is ignored.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
}
