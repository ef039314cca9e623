// Package cache wraps expensive computations behind a TTL result cache with
// pluggable backends.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ResultCache serves computed values from a Store. Concurrent computations
// for the same key share one call. It is safe for concurrent use.
type ResultCache struct {
	store  Store
	prefix string
	group  singleflight.Group
}

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithPrefix namespaces every key written by the cache.
func WithPrefix(prefix string) Option {
	return func(rc *ResultCache) { rc.prefix = prefix }
}

// New creates a ResultCache over store.
func New(store Store, opts ...Option) *ResultCache {
	rc := &ResultCache{store: store}
	for _, o := range opts {
		o(rc)
	}
	return rc
}

// Key joins request parameters into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

type outcome struct {
	raw []byte
	hit bool
}

// GetOrCompute returns the cached value for key, or runs compute and caches
// its result for ttl. force skips the lookup but still stores the fresh
// value. The bool result reports whether the value came from the cache.
//
// Backend failures never fail the call: a failed or undecodable read is
// treated as a miss and a failed write is logged. Errors from compute are
// returned and nothing is cached.
func GetOrCompute[T any](ctx context.Context, rc *ResultCache, key string, ttl time.Duration, force bool, compute func(context.Context) (T, error)) (T, bool, error) {
	return GetOrComputeTTL(ctx, rc, key, force, compute, func(T) time.Duration { return ttl })
}

// GetOrComputeTTL is GetOrCompute with the TTL chosen from the computed
// value, so that e.g. empty results can expire sooner. A TTL <= 0 leaves the
// value uncached.
func GetOrComputeTTL[T any](ctx context.Context, rc *ResultCache, key string, force bool, compute func(context.Context) (T, error), ttlFn func(T) time.Duration) (T, bool, error) {
	var zero T
	full := rc.prefix + key
	log := zap.L().With(zap.String("component", "cache"), zap.String("key", full))

	flight := full
	if force {
		flight = "force\x00" + full
	}

	// The shared call outlives any single caller, so one caller going away
	// does not fail the others waiting on the same key.
	shared := context.WithoutCancel(ctx)
	ch := rc.group.DoChan(flight, func() (any, error) {
		if !force {
			raw, ok, err := rc.store.Get(shared, full)
			if err != nil {
				log.Warn("cache: get failed, recomputing", zap.Error(err))
			} else if ok {
				return outcome{raw: raw, hit: true}, nil
			}
		}

		val, err := compute(shared)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}

		if ttl := ttlFn(val); ttl > 0 {
			if err := rc.store.Set(shared, full, raw, ttl); err != nil {
				log.Warn("cache: set failed", zap.Error(err))
			}
		}
		return outcome{raw: raw}, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, false, res.Err
	}

	out := res.Val.(outcome)
	var result T
	if err := json.Unmarshal(out.raw, &result); err != nil {
		if !out.hit {
			return zero, false, err
		}
		log.Warn("cache: undecodable entry, recomputing", zap.Error(err))
		return GetOrComputeTTL(ctx, rc, key, true, compute, ttlFn)
	}

	if out.hit {
		log.Debug("cache: hit")
	}
	return result, out.hit, nil
}
