// Package cache provides a TTL cache with a Redis backend and an in-process
// fallback. Cache trouble never breaks a request: reads degrade to misses
// and writes are dropped.
package cache

import (
	"context"
	"time"
)

// Store is the read-through cache surface. Get reports a hit after decoding
// into dest; Set stores a JSON-serialized value under a TTL.
type Store interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Ping(ctx context.Context) error
}

// Nop is a Store that caches nothing. Used when caching is disabled.
type Nop struct{}

func (Nop) Get(context.Context, string, any) bool               { return false }
func (Nop) Set(context.Context, string, any, time.Duration)     {}
func (Nop) Ping(context.Context) error                          { return nil }
