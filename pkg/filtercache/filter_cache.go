// Package filtercache provides per-predicate memoized hit sets for the
// caching query engine.
//
// A FilterCache remembers which items have been observed to satisfy one
// named predicate, so that repeated queries over the same collection can
// answer by set membership instead of re-running the predicate.
//
// Features:
// - O(1) membership checks backed by a hash set
// - Hit/miss counters for selectivity-based query ordering
// - Completion detection once every distinct item has been evaluated
// - Utilization-based self-disablement for caches that stop paying rent
//
// Usage:
//
//	fc, err := filtercache.New(isActive, "active", filtercache.UnknownItemCount, 0.5)
//	if err != nil {
//		return err
//	}
//
//	// During enumeration
//	if fc.Contains(item) {
//		fc.RecordHitCached()
//	} else if fc.Evaluate(item) {
//		fc.RecordHit(item)
//	} else {
//		fc.RecordMiss()
//	}
package filtercache

import (
	"errors"
	"fmt"
	"math"

	mapset "github.com/deckarep/golang-set/v2"
)

// UnknownItemCount is the sentinel for "total distinct item count not yet
// known". Caches constructed over a lazy, not-yet-enumerated source start
// with this value and receive the real count when the source completes.
const UnknownItemCount = -1

// DefaultUtilizationThreshold is the fraction of the collection a cache may
// miss on before it disables itself. See TryDisable.
const DefaultUtilizationThreshold = 0.5

// Validation errors returned by New and SetExpectedItemCount.
var (
	// ErrThresholdOutOfRange is returned when a utilization threshold is
	// outside [0, 1].
	ErrThresholdOutOfRange = errors.New("utilization threshold out of range [0, 1]")

	// ErrNegativeItemCount is returned when an expected item count is
	// negative and not the UnknownItemCount sentinel.
	ErrNegativeItemCount = errors.New("expected item count must be non-negative or UnknownItemCount")

	// ErrEmptyFilterName is returned when a filter is registered without a name.
	ErrEmptyFilterName = errors.New("filter name must not be empty")
)

// FilterCache is a memoized hit set for one named predicate.
//
// The cache records every item seen to satisfy the predicate during source
// enumeration, together with hit and miss counters. Once the owning engine
// knows the total number of distinct items, the cache can detect completion
// (every distinct item evaluated) and can disable itself when the predicate
// passes too few items for the memory to be worth keeping.
//
// A FilterCache is NOT internally synchronized. It is owned by the engine's
// shared state and all access is serialized by the shared-state mutex or by
// the enumerator's snapshot discipline, the same discipline the rest of the
// engine internals use.
//
// Example:
//
//	fc, _ := filtercache.New(func(p *Person) bool { return p.Active }, "active",
//		filtercache.UnknownItemCount, 0.5)
//
//	fc.RecordHit(alice)  // alice satisfies the predicate
//	fc.RecordMiss()      // bob does not
//
//	fc.SetExpectedItemCount(2)
//	fc.Complete() // true: 1 hit + 1 miss == 2 expected
type FilterCache[T comparable] struct {
	name      string
	predicate func(T) bool

	// members answers Contains in O(1); order preserves insertion order so a
	// completed cache can drive iteration deterministically.
	members mapset.Set[T]
	order   []T

	numHits   int
	numMisses int

	expectedItemCount    int
	maxAllowedMisses     int
	utilizationThreshold float64

	disabled bool
}

// New creates a FilterCache for the given predicate and name.
//
// Parameters:
//   - predicate: pure total function deciding membership; must be
//     side-effect-free and stable for the lifetime of the cache
//   - name: non-empty key identifying this cache in the engine's pool
//   - expectedItemCount: total distinct items in the collection, or
//     UnknownItemCount when the source has not been enumerated yet
//   - utilizationThreshold: fraction in [0, 1] of the collection the cache
//     may miss on before disabling itself (see TryDisable)
//
// Returns:
//   - ErrEmptyFilterName, ErrNegativeItemCount or ErrThresholdOutOfRange on
//     invalid arguments
//
// Example:
//
//	fc, err := filtercache.New(isMinor, "minors", 16, 0.5)
//	if err != nil {
//		return err
//	}
func New[T comparable](predicate func(T) bool, name string, expectedItemCount int, utilizationThreshold float64) (*FilterCache[T], error) {
	if name == "" {
		return nil, ErrEmptyFilterName
	}
	if predicate == nil {
		return nil, fmt.Errorf("filter %q: predicate must not be nil", name)
	}
	if utilizationThreshold < 0 || utilizationThreshold > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrThresholdOutOfRange, utilizationThreshold)
	}
	if expectedItemCount < 0 && expectedItemCount != UnknownItemCount {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeItemCount, expectedItemCount)
	}

	fc := &FilterCache[T]{
		name:                 name,
		predicate:            predicate,
		members:              mapset.NewThreadUnsafeSet[T](),
		expectedItemCount:    expectedItemCount,
		utilizationThreshold: utilizationThreshold,
	}
	fc.recomputeMaxAllowedMisses()
	return fc, nil
}

// Name returns the filter name this cache is registered under.
func (fc *FilterCache[T]) Name() string { return fc.name }

// Evaluate runs the raw predicate against an item without touching the hit
// set or the counters. Used for disabled caches and for callers that need
// the predicate outcome only.
func (fc *FilterCache[T]) Evaluate(item T) bool { return fc.predicate(item) }

// Contains reports whether the item is already memoized as a hit.
//
// Performance: O(1) hash-set membership.
func (fc *FilterCache[T]) Contains(item T) bool { return fc.members.Contains(item) }

// RecordHit memoizes an item that satisfied the predicate and increments the
// hit counter. Call this the first time an item passes; for items already
// memoized use RecordHitCached.
func (fc *FilterCache[T]) RecordHit(item T) {
	if fc.members.Add(item) {
		fc.order = append(fc.order, item)
	}
	fc.numHits++
}

// RecordHitCached increments the hit counter for an item that is already in
// the hit set. The set itself is left untouched.
func (fc *FilterCache[T]) RecordHitCached() { fc.numHits++ }

// RecordMiss increments the miss counter.
func (fc *FilterCache[T]) RecordMiss() { fc.numMisses++ }

// SetExpectedItemCount installs the now-known total of distinct items,
// recomputes the miss budget, and immediately applies the disablement
// policy.
//
// Returns ErrNegativeItemCount for a negative non-sentinel count.
//
// Example:
//
//	// Source enumeration finished with 16 distinct items.
//	for _, fc := range pool {
//		fc.SetExpectedItemCount(16)
//	}
func (fc *FilterCache[T]) SetExpectedItemCount(n int) error {
	if n < 0 && n != UnknownItemCount {
		return fmt.Errorf("%w: got %d", ErrNegativeItemCount, n)
	}
	fc.expectedItemCount = n
	fc.recomputeMaxAllowedMisses()
	fc.TryDisable()
	return nil
}

// TryDisable disables the cache when it has missed on more of the collection
// than its utilization threshold allows, and reports whether it did so.
//
// The cache is kept while a comfortable fraction of the collection satisfies
// its predicate. The miss budget is
// ceil(expectedItemCount * utilizationThreshold); a cache that has missed on
// more items than that is disabled and releases its hit set. A filter that
// passes nearly everything stays within the budget and stays enabled.
//
// Disabling is one-way: a disabled cache stays in the pool so the name
// remains registered, but enumerators bypass it and evaluate the predicate
// directly.
//
// Returns:
//   - true if the cache transitioned to (or already was) disabled
//
// ELI12:
//
// Imagine keeping a list of classmates who are left-handed, and allowing
// yourself to hear "no" from at most half the class. Once more classmates
// than that have said "no", you throw the list away and simply ask each
// person from then on.
func (fc *FilterCache[T]) TryDisable() bool {
	if fc.disabled {
		return true
	}
	if fc.expectedItemCount == UnknownItemCount {
		return false
	}
	if fc.numMisses > fc.maxAllowedMisses {
		fc.disabled = true
		fc.members.Clear()
		fc.order = nil
		return true
	}
	return false
}

// Disabled reports whether the cache has been disabled. A disabled cache has
// an empty hit set and must be bypassed by enumerators.
func (fc *FilterCache[T]) Disabled() bool { return fc.disabled }

// Complete reports whether every distinct item of the collection has been
// evaluated against this predicate: the expected item count is known and
// hits plus misses equals it. A complete, non-disabled cache can answer
// filter decisions by membership alone and can drive iteration itself.
func (fc *FilterCache[T]) Complete() bool {
	return fc.expectedItemCount != UnknownItemCount &&
		fc.numHits+fc.numMisses == fc.expectedItemCount
}

// Len returns the number of memoized hits.
func (fc *FilterCache[T]) Len() int { return fc.members.Cardinality() }

// Items returns the memoized hits in insertion order. The returned slice is
// a copy; mutating it does not affect the cache.
func (fc *FilterCache[T]) Items() []T {
	out := make([]T, len(fc.order))
	copy(out, fc.order)
	return out
}

// SelectivityKey returns the ordering key used to sort the cache pool:
// numHits when no miss has been recorded yet, otherwise numHits/numMisses
// (integer division). Lower keys mean more restrictive filters; sorting
// ascending puts the tightest caches first so they drive enumeration and
// short-circuit earliest.
func (fc *FilterCache[T]) SelectivityKey() int {
	if fc.numMisses == 0 {
		return fc.numHits
	}
	return fc.numHits / fc.numMisses
}

// Stats returns a point-in-time snapshot of the cache's counters and state.
//
// Example:
//
//	for _, st := range query.CacheStats() {
//		fmt.Printf("%-12s hits=%-4d misses=%-4d size=%-4d complete=%v disabled=%v\n",
//			st.Name, st.Hits, st.Misses, st.Size, st.Complete, st.Disabled)
//	}
func (fc *FilterCache[T]) Stats() CacheStats {
	return CacheStats{
		Name:              fc.name,
		Hits:              fc.numHits,
		Misses:            fc.numMisses,
		Size:              fc.members.Cardinality(),
		ExpectedItemCount: fc.expectedItemCount,
		Complete:          fc.Complete(),
		Disabled:          fc.disabled,
	}
}

// recomputeMaxAllowedMisses derives the miss budget from the expected item
// count and the utilization threshold.
func (fc *FilterCache[T]) recomputeMaxAllowedMisses() {
	if fc.expectedItemCount == UnknownItemCount {
		fc.maxAllowedMisses = 0
		return
	}
	fc.maxAllowedMisses = int(math.Ceil(float64(fc.expectedItemCount) * fc.utilizationThreshold))
}

// CacheStats holds a snapshot of one FilterCache's counters.
//
// Fields:
//   - Name: the filter name the cache is registered under
//   - Hits: predicate passes recorded during source enumeration
//   - Misses: predicate failures recorded during source enumeration
//   - Size: current number of memoized hits
//   - ExpectedItemCount: known distinct total, or UnknownItemCount
//   - Complete: every distinct item has been evaluated
//   - Disabled: the cache has released its hit set and is bypassed
type CacheStats struct {
	Name              string
	Hits              int
	Misses            int
	Size              int
	ExpectedItemCount int
	Complete          bool
	Disabled          bool
}
