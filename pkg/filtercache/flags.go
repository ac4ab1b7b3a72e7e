// Package filtercache feature flag for the memoization layer.
//
// Caching is on by default. Disabling it turns every query into pure
// predicate evaluation: enumerators bypass all filter caches and no hit set
// or counter is mutated. This allows A/B comparison of query cost with and
// without memoization, and is a useful escape hatch when predicates are
// suspected of misbehaving.
//
// Usage:
//
//	// Disable globally
//	filtercache.DisableCaching()
//
//	// Check before consulting a cache
//	if filtercache.IsCachingEnabled() {
//		// ... memoized path ...
//	}
//
//	// Use scoped disable (for tests)
//	cleanup := filtercache.WithCachingDisabled()
//	defer cleanup()
//
// Environment variable:
//
//	CACHEQUERY_CACHING_DISABLED=true
package filtercache

import (
	"os"
	"sync"
	"sync/atomic"
)

// EnvCachingDisabled is the environment variable that disables filter-cache
// memoization at startup.
const EnvCachingDisabled = "CACHEQUERY_CACHING_DISABLED"

var (
	cachingDisabled atomic.Bool
	flagInitOnce    sync.Once
)

func init() {
	// Check environment variable on startup
	flagInitOnce.Do(func() {
		if env := os.Getenv(EnvCachingDisabled); env == "true" || env == "1" {
			cachingDisabled.Store(true)
		}
	})
}

// EnableCaching globally enables filter-cache memoization. This is the
// default state.
func EnableCaching() {
	cachingDisabled.Store(false)
}

// DisableCaching globally disables filter-cache memoization. Enumerators
// treat every cache as disabled and evaluate predicates directly.
func DisableCaching() {
	cachingDisabled.Store(true)
}

// IsCachingEnabled returns true if filter-cache memoization is enabled.
func IsCachingEnabled() bool {
	return !cachingDisabled.Load()
}

// SetCachingEnabled sets the global memoization state.
func SetCachingEnabled(enabled bool) {
	cachingDisabled.Store(!enabled)
}

// WithCachingDisabled temporarily disables memoization and returns a cleanup
// function. Useful for tests that compare cached and uncached behavior.
//
// Example:
//
//	cleanup := filtercache.WithCachingDisabled()
//	defer cleanup()
//	// ... test code with memoization off ...
func WithCachingDisabled() func() {
	prev := cachingDisabled.Load()
	cachingDisabled.Store(true)
	return func() {
		cachingDisabled.Store(prev)
	}
}

// WithCachingEnabled temporarily enables memoization and returns a cleanup
// function.
func WithCachingEnabled() func() {
	prev := cachingDisabled.Load()
	cachingDisabled.Store(false)
	return func() {
		cachingDisabled.Store(prev)
	}
}
