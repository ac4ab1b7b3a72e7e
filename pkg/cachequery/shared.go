package cachequery

import (
	"cmp"
	"slices"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ski-dive-dev/cachingcollections/pkg/filtercache"
	"github.com/ski-dive-dev/cachingcollections/pkg/source"
)

// sharedState is the process-private bundle shared by a root query and every
// scope forked from it: the source handle, the materialized item list, the
// deduplicated item set, the completion flag, the dedup policy, and the
// filter-cache pool.
//
// All mutable fields are guarded by mu. The source handle and the dedup
// policy are immutable after construction and may be read without the lock.
// FilterCaches in the pool carry no lock of their own; they rely on this
// mutex and on the enumerator snapshot discipline.
type sharedState[T comparable] struct {
	mu sync.Mutex

	source source.Source[T]
	dedup  bool

	// items preserves first-seen order, duplicates included. Replaced
	// wholesale by publish; never mutated in place once installed.
	items         []T
	dedupItems    mapset.Set[T]
	itemsComplete bool

	cachePool   []*filtercache.FilterCache[T]
	cacheByName map[string]*filtercache.FilterCache[T]

	// filtersOrdered is cleared by any filter-map mutation and by source
	// completion; the next enumerator construction re-sorts the pool.
	filtersOrdered bool

	scratch *residualPool[T]
}

func newSharedState[T comparable](src source.Source[T], dedup bool) *sharedState[T] {
	return &sharedState[T]{
		source:      src,
		dedup:       dedup,
		dedupItems:  mapset.NewThreadUnsafeSet[T](),
		cacheByName: make(map[string]*filtercache.FilterCache[T]),
		scratch:     newResidualPool[T](),
	}
}

// preload installs an already-materialized collection: the item list verbatim
// and the distinct set derived from it. Used by NewFromSlice.
func (s *sharedState[T]) preload(items []T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.dedupItems = mapset.NewThreadUnsafeSet[T](items...)
	s.itemsComplete = true
}

// orderPoolLocked stable-sorts the cache pool ascending by selectivity key,
// placing the most restrictive caches first. Stable ordering keeps client
// registration order as the tiebreak. Idempotent; caller holds mu.
func (s *sharedState[T]) orderPoolLocked() {
	if s.filtersOrdered {
		return
	}
	slices.SortStableFunc(s.cachePool, func(a, b *filtercache.FilterCache[T]) int {
		return cmp.Compare(a.SelectivityKey(), b.SelectivityKey())
	})
	s.filtersOrdered = true
}

// publish installs the collectors built by a source-driven pass, marks the
// collection complete, and pushes the distinct count into every cache in the
// pool. First publisher wins: if a concurrent pass already completed, the
// replay-equal collectors are dropped.
func (s *sharedState[T]) publish(items []T, dedupItems mapset.Set[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.itemsComplete {
		return
	}
	s.items = items
	s.dedupItems = dedupItems
	s.itemsComplete = true

	n := dedupItems.Cardinality()
	for _, fc := range s.cachePool {
		fc.SetExpectedItemCount(n)
	}
	s.filtersOrdered = false
}
