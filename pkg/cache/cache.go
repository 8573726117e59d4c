// Package cache stores intermediate pipeline results: built skeleton graphs,
// oriented graphs and sampled cross sections.
//
// Three backends share the [Cache] interface. [NullCache] never stores
// anything, [FileCache] keeps entries as files under a directory (the CLI
// default, ~/.cache/skeleplex) and [RedisCache] keeps them in a Redis
// server so several machines can share results. Keys come from a [Keyer],
// which hashes every input that affects a result.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
//
// Get reports a miss with ok == false and a nil error. A ttl of zero in Set
// means the entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Default entry lifetimes.
const (
	GraphTTL    = 7 * 24 * time.Hour
	SectionsTTL = 24 * time.Hour
)
