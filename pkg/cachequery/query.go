// Package cachequery implements an in-memory caching query engine over a
// client-supplied, read-mostly collection.
//
// Clients compose named boolean predicates ("filters") in a fluent style;
// the engine enumerates the source lazily, memoizes per-filter hit sets,
// reorders filter evaluation by observed selectivity, and supports nested
// scoped queries whose added filters are discarded on scope exit while the
// shared caches persist.
//
// Features:
// - Source materialized at most once, on first full enumeration
// - Per-filter hit sets answer repeat queries by set membership
// - Selectivity-ordered evaluation: the tightest filters run first
// - Completed caches drive iteration directly, skipping the collection
// - Scoped queries fork the filter map and retire their caches on disposal
//
// Usage:
//
//	q := cachequery.Must(cachequery.New[*Person](src))
//	defer q.Dispose()
//
//	q.AddFilter(func(p *Person) bool { return p.Active }, "active").
//		AddFilter(func(p *Person) bool { return !p.Deleted }, "not_deleted")
//
//	for p := range q.All() {
//		fmt.Println(p.Name)
//	}
//
//	scope := q.StartScopedQuery()
//	defer scope.Dispose()
//	scope.AddFilter(func(p *Person) bool { return p.Age < 18 }, "minors")
package cachequery

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ski-dive-dev/cachingcollections/pkg/filtercache"
	"github.com/ski-dive-dev/cachingcollections/pkg/source"
)

// DefaultFilteredCountMemoSize bounds the FilteredCount memo per query
// handle.
const DefaultFilteredCountMemoSize = 128

// Query is the engine's handle type. A root Query owns the shared state for
// one source; StartScopedQuery forks lightweight handles that overlay their
// own filter map on the same shared state and cache pool.
//
// A Query's filter map is guarded by the shared-state mutex, like every
// other piece of engine state rooted at one source. Iteration is
// single-threaded and cooperative; multiple handles over one shared state
// may exist concurrently.
//
// Items are borrowed references: the engine never clones them, and the
// fields predicates inspect must not mutate after an item enters any cache.
type Query[T comparable] struct {
	shared *sharedState[T]

	// filters maps filter names to predicates active in this scope.
	filters map[string]func(T) bool

	// preExisting holds the names that were already active when this scope
	// was forked; disposal retires only the caches this scope introduced.
	preExisting map[string]struct{}

	threshold float64
	memoSize  int

	// filteredCounts memoizes FilteredCount per active filter-set
	// signature. First-use memo: no invalidation on filter mutation.
	filteredCounts *lru.Cache[string, int]

	disposed bool
	err      error
}

type settings struct {
	dedup     bool
	threshold float64
	memoSize  int
}

// Option configures query construction. Functional options keep the
// constructors chainable while defaults stay sensible.
type Option func(*settings)

// WithoutDedup retains duplicate item references in query results. The
// default policy collapses duplicates.
func WithoutDedup() Option {
	return func(s *settings) { s.dedup = false }
}

// WithUtilizationThreshold overrides the fraction of the collection a filter
// cache may miss on before disabling itself. Must be in [0, 1]; the default
// is filtercache.DefaultUtilizationThreshold.
func WithUtilizationThreshold(t float64) Option {
	return func(s *settings) { s.threshold = t }
}

// WithFilteredCountMemoSize overrides the FilteredCount memo capacity.
func WithFilteredCountMemoSize(n int) Option {
	return func(s *settings) { s.memoSize = n }
}

// New creates a root Query over a lazy source. The source is not touched
// until the first operation that needs it; the first exhaustive pass
// materializes it into shared state so later queries never walk it again.
//
// The source must be deterministic and replay-equal: if two passes race,
// both build collectors but only the first to finish publishes.
//
// Returns filtercache.ErrThresholdOutOfRange for an out-of-range threshold
// option.
//
// Example:
//
//	q, err := cachequery.New[*Person](store, cachequery.WithUtilizationThreshold(0.75))
//	if err != nil {
//		return err
//	}
//	defer q.Dispose()
func New[T comparable](src source.Source[T], opts ...Option) (*Query[T], error) {
	st := settings{
		dedup:     true,
		threshold: filtercache.DefaultUtilizationThreshold,
		memoSize:  DefaultFilteredCountMemoSize,
	}
	for _, opt := range opts {
		opt(&st)
	}
	if st.threshold < 0 || st.threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", filtercache.ErrThresholdOutOfRange, st.threshold)
	}
	if st.memoSize <= 0 {
		return nil, fmt.Errorf("filtered count memo size must be positive, got %d", st.memoSize)
	}
	memo, err := lru.New[string, int](st.memoSize)
	if err != nil {
		return nil, fmt.Errorf("creating filtered count memo: %w", err)
	}

	return &Query[T]{
		shared:         newSharedState(src, st.dedup),
		filters:        make(map[string]func(T) bool),
		preExisting:    make(map[string]struct{}),
		threshold:      st.threshold,
		memoSize:       st.memoSize,
		filteredCounts: memo,
	}, nil
}

// NewFromSlice creates a root Query over an already-materialized collection.
// Shared state starts complete: the item list is taken verbatim (duplicates
// included) and the distinct set is built up front, so filter caches
// registered later know their expected item count immediately.
//
// Example:
//
//	q, err := cachequery.NewFromSlice(people)
func NewFromSlice[T comparable](items []T, opts ...Option) (*Query[T], error) {
	owned := slices.Clone(items)
	q, err := New(source.FromSlice(owned), opts...)
	if err != nil {
		return nil, err
	}
	q.shared.preload(owned)
	return q, nil
}

// Must is a convenience wrapper that panics on construction error. Query
// construction only fails on invalid options, so statically configured
// queries can use this to avoid error ceremony.
//
// Example:
//
//	q := cachequery.Must(cachequery.New[*Person](src))
func Must[T comparable](q *Query[T], err error) *Query[T] {
	if err != nil {
		panic(err)
	}
	return q
}

// AddFilter activates a named predicate in this scope and returns the handle
// for chaining.
//
// If the name is already active in this scope the call is a no-op (name
// collisions within a scope are silently ignored). If no cache for the name
// exists in the shared pool, one is registered; a cache left behind by a
// disposed scope is reused, hit set and all.
//
// An empty name or nil predicate records a validation error retrievable via
// Err and leaves the filter map unchanged.
//
// Example:
//
//	q.AddFilter(func(p *Person) bool { return p.Active }, "active").
//		AddFilter(func(p *Person) bool { return !p.Deleted }, "not_deleted")
func (q *Query[T]) AddFilter(predicate func(T) bool, name string) *Query[T] {
	s := q.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		q.setErr(filtercache.ErrEmptyFilterName)
		return q
	}
	if predicate == nil {
		q.setErr(fmt.Errorf("filter %q: predicate must not be nil", name))
		return q
	}
	if _, active := q.filters[name]; active {
		return q
	}

	if _, pooled := s.cacheByName[name]; !pooled {
		expected := filtercache.UnknownItemCount
		if s.itemsComplete {
			expected = s.dedupItems.Cardinality()
		}
		fc, err := filtercache.New(predicate, name, expected, q.threshold)
		if err != nil {
			q.setErr(err)
			return q
		}
		s.cachePool = append(s.cachePool, fc)
		s.cacheByName[name] = fc
	}

	q.filters[name] = predicate
	s.filtersOrdered = false
	return q
}

// RemoveFilter deactivates a named filter in this scope and returns the
// handle for chaining. The underlying cache stays in the pool for reuse by
// other scopes; removing an unknown name is a no-op.
func (q *Query[T]) RemoveFilter(name string) *Query[T] {
	s := q.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, active := q.filters[name]; !active {
		return q
	}
	delete(q.filters, name)
	s.filtersOrdered = false
	return q
}

// All returns an iterator over the items passing every filter active in this
// scope.
//
// Each range over the returned sequence is a fresh pass: the enumerator
// re-snapshots the pool order and driver choice. The pool is re-sorted by
// selectivity first only if a filter was added or removed, a scope was
// forked, or the source completed since the last sort. Breaking out of the loop
// abandons the pass; a partially built materialization is discarded and the
// collection stays incomplete.
//
// Ordering: before dedup collapse and after completion, first-observation
// order from the source; under dedup policy, unspecified; when a completed
// cache drives, that cache's insertion order.
//
// Example:
//
//	for p := range q.All() {
//		fmt.Println(p.Name)
//	}
func (q *Query[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		newEnumerator(q.shared, q.filters).run(yield)
	}
}

// Items materializes the current filtered iteration into a slice.
func (q *Query[T]) Items() []T {
	var out []T
	for x := range q.All() {
		out = append(out, x)
	}
	return out
}

// Count returns the total number of items in the collection: distinct items
// under dedup policy, occurrences otherwise. Filters do not apply. The first
// call on a lazy source triggers enumeration; afterwards it is O(1).
func (q *Query[T]) Count() int {
	q.ensureMaterialized()
	s := q.shared
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dedup {
		return s.dedupItems.Cardinality()
	}
	return len(s.items)
}

// FilteredCount returns the number of items passing every active filter.
// The result is memoized per filter-set signature on first use and is not
// invalidated when the underlying data or caches change.
func (q *Query[T]) FilteredCount() int {
	sig := q.filterSignature()
	if n, ok := q.filteredCounts.Get(sig); ok {
		return n
	}
	n := 0
	for range q.All() {
		n++
	}
	q.filteredCounts.Add(sig, n)
	return n
}

// Contains reports whether the item is in the collection, forcing first-time
// enumeration so the distinct set is populated. O(1) after the first pass.
func (q *Query[T]) Contains(item T) bool {
	q.ensureMaterialized()
	s := q.shared
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dedupItems.Contains(item)
}

// ItemWithMax returns the item with the greatest integer key, and false for
// an empty collection. Filters do not apply. If the collection still needs
// its first enumeration, the aggregate fuses with that pass; otherwise it
// folds over the distinct set.
//
// Example:
//
//	oldest, ok := q.ItemWithMax(func(p *Person) int { return p.Age })
func (q *Query[T]) ItemWithMax(key func(T) int) (T, bool) {
	return q.extremum(key, func(k, best int) bool { return k > best })
}

// ItemWithMin returns the item with the least integer key, and false for an
// empty collection. See ItemWithMax.
func (q *Query[T]) ItemWithMin(key func(T) int) (T, bool) {
	return q.extremum(key, func(k, best int) bool { return k < best })
}

func (q *Query[T]) extremum(key func(T) int, better func(k, best int) bool) (T, bool) {
	var best T
	var bestKey int
	found := false
	consider := func(x T) {
		k := key(x)
		if !found || better(k, bestKey) {
			best, bestKey, found = x, k, true
		}
	}

	s := q.shared
	s.mu.Lock()
	complete := s.itemsComplete
	var fold []T
	if complete {
		fold = s.dedupItems.ToSlice()
	}
	s.mu.Unlock()

	if complete {
		for _, x := range fold {
			consider(x)
		}
		return best, found
	}

	// Fuse the aggregate with the first enumeration: one pass builds the
	// collectors and the extremum together.
	newEnumerator(s, nil).run(func(x T) bool {
		consider(x)
		return true
	})
	return best, found
}

// StartScopedQuery forks a scope: a new handle sharing this query's source,
// materialization, and cache pool, with the filter map copied by value. The
// scope may add and remove filters freely without affecting the parent; on
// disposal, caches introduced by the scope are offered for retirement.
//
// Example:
//
//	scope := q.StartScopedQuery()
//	defer scope.Dispose()
//	scope.AddFilter(func(p *Person) bool { return p.Age < 18 }, "minors")
func (q *Query[T]) StartScopedQuery() *Query[T] {
	s := q.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	memo, err := lru.New[string, int](q.memoSize)
	if err != nil {
		// Capacity was validated at root construction.
		panic(err)
	}
	child := &Query[T]{
		shared:         s,
		filters:        make(map[string]func(T) bool, len(q.filters)),
		preExisting:    make(map[string]struct{}, len(q.filters)),
		threshold:      q.threshold,
		memoSize:       q.memoSize,
		filteredCounts: memo,
	}
	maps.Copy(child.filters, q.filters)
	for name := range q.filters {
		child.preExisting[name] = struct{}{}
	}
	s.filtersOrdered = false
	return child
}

// Dispose releases this handle's claim on the caches it introduced: every
// filter added in this scope (not inherited from the parent) has its pool
// cache offered for retirement via TryDisable. Caches an outer scope relies
// on keep their names registered in that scope and survive untouched.
//
// Dispose is idempotent; double-dispose is a no-op. The shared state lives
// as long as the longest-lived handle over it.
func (q *Query[T]) Dispose() {
	s := q.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	if q.disposed {
		return
	}
	q.disposed = true

	for name := range q.filters {
		if _, inherited := q.preExisting[name]; inherited {
			continue
		}
		if fc, ok := s.cacheByName[name]; ok {
			fc.TryDisable()
		}
	}
}

// FilterNames returns the names active in this scope, sorted.
func (q *Query[T]) FilterNames() []string {
	q.shared.mu.Lock()
	defer q.shared.mu.Unlock()
	return slices.Sorted(maps.Keys(q.filters))
}

// CacheStats returns snapshots of the caches backing this scope's active
// filters, in current pool order.
func (q *Query[T]) CacheStats() []filtercache.CacheStats {
	s := q.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]filtercache.CacheStats, 0, len(q.filters))
	for _, fc := range s.cachePool {
		if _, active := q.filters[fc.Name()]; active {
			out = append(out, fc.Stats())
		}
	}
	return out
}

// Err returns the first validation error recorded by a fluent call on this
// handle, or nil.
func (q *Query[T]) Err() error {
	q.shared.mu.Lock()
	defer q.shared.mu.Unlock()
	return q.err
}

// setErr keeps the first error. Caller holds the shared-state lock.
func (q *Query[T]) setErr(err error) {
	if q.err == nil {
		q.err = err
	}
}

// ensureMaterialized drains an unfiltered pass if the collection has not
// completed yet, publishing the materialization as a side effect.
func (q *Query[T]) ensureMaterialized() {
	s := q.shared
	s.mu.Lock()
	complete := s.itemsComplete
	s.mu.Unlock()
	if complete {
		return
	}
	newEnumerator(s, nil).run(func(T) bool { return true })
}

// filterSignature is the memo key for FilteredCount: the sorted active
// filter names joined with an unprintable separator.
func (q *Query[T]) filterSignature() string {
	q.shared.mu.Lock()
	names := slices.Sorted(maps.Keys(q.filters))
	q.shared.mu.Unlock()
	return strings.Join(names, "\x1f")
}
