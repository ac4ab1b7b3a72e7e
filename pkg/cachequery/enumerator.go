// Caching enumerator implementation.
// This file contains driver selection, candidate routing, short-circuiting,
// and the publish step that completes the shared collection.

package cachequery

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ski-dive-dev/cachingcollections/pkg/filtercache"
)

type driverKind int

const (
	// driveSource walks the lazy source, building the materialization
	// collectors as a side effect.
	driveSource driverKind = iota
	// driveMaterialized walks the already-published item list (or distinct
	// set, under dedup policy).
	driveMaterialized
	// driveCache walks the hit set of the most restrictive completed cache;
	// membership implies that cache's predicate, so it leaves the residual
	// list.
	driveCache
)

// enumerator is a single-pass filter-applying iterator. It takes the
// shared-state lock exactly twice: once at construction to snapshot the
// driver choice and the residual cache list, and once on exhaustion of a
// source-driven pass to publish the collectors. Per-element evaluation runs
// lock-free on the snapshot.
type enumerator[T comparable] struct {
	shared *sharedState[T]
	kind   driverKind

	// complete records itemsComplete at snapshot time. Before completion
	// every residual filter is evaluated for each candidate so every cache
	// gets a chance to populate; after completion a failing filter
	// short-circuits the rest.
	complete bool

	// caching records the global memoization switch at snapshot time. When
	// off, every cache is treated as disabled.
	caching bool

	driverItems []T
	residual    []*filtercache.FilterCache[T]

	// active is the pooled backing slice for residual; returned to scratch
	// on release.
	active []*filtercache.FilterCache[T]
}

// newEnumerator snapshots the active caches (those whose names appear in the
// caller's filter map, in current pool order) and selects a driver, all
// under the shared-state lock. The filters map must itself be read under
// that lock, which is why it is passed in rather than pre-resolved.
func newEnumerator[T comparable](s *sharedState[T], filters map[string]func(T) bool) *enumerator[T] {
	e := &enumerator[T]{
		shared:  s,
		caching: filtercache.IsCachingEnabled(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orderPoolLocked()

	active := s.scratch.get()
	for _, fc := range s.cachePool {
		if _, ok := filters[fc.Name()]; ok {
			active = append(active, fc)
		}
	}
	e.active = active
	e.complete = s.itemsComplete

	switch {
	case s.itemsComplete && e.caching && len(active) > 0 &&
		active[0].Complete() && !active[0].Disabled():
		// The tightest active cache is complete: drive from its hit set.
		e.kind = driveCache
		e.driverItems = active[0].Items()
		e.residual = active[1:]
	case s.itemsComplete:
		e.kind = driveMaterialized
		if s.dedup {
			e.driverItems = s.dedupItems.ToSlice()
		} else {
			e.driverItems = s.items
		}
		e.residual = active
	default:
		e.kind = driveSource
		e.residual = active
	}
	return e
}

// run pushes every admitted candidate to yield until the driver is exhausted
// or the consumer stops. Safe to call once per enumerator.
func (e *enumerator[T]) run(yield func(T) bool) {
	defer e.release()

	if e.kind != driveSource {
		for _, x := range e.driverItems {
			if !e.admit(x) {
				continue
			}
			if !yield(x) {
				return
			}
		}
		return
	}

	// Source-driven pass: materialize into an ordered collector and a
	// distinct-set collector while filtering.
	ordered := make([]T, 0, 64)
	dedupItems := mapset.NewThreadUnsafeSet[T]()
	for x := range e.shared.source.Items() {
		ordered = append(ordered, x)
		first := dedupItems.Add(x)
		if e.shared.dedup && !first {
			// Duplicate occurrence of an item that already went through the
			// filters; under dedup policy it is neither re-routed nor
			// re-yielded.
			continue
		}
		if !e.admit(x) {
			continue
		}
		if !yield(x) {
			// Abandoned mid-traversal: discard the partial collectors.
			return
		}
	}
	e.shared.publish(ordered, dedupItems)
}

// admit routes one candidate through the residual filters.
func (e *enumerator[T]) admit(x T) bool {
	pass := true
	for _, fc := range e.residual {
		if e.evalCache(fc, x) {
			continue
		}
		pass = false
		if e.complete {
			// After completion failing one filter settles the candidate;
			// before completion the rest still run so their caches populate.
			return false
		}
	}
	return pass
}

// evalCache evaluates one filter for one candidate, updating the cache per
// its lifecycle state: disabled caches are bypassed entirely, completed
// caches answer by membership without touching counters, populating caches
// record hits and misses.
func (e *enumerator[T]) evalCache(fc *filtercache.FilterCache[T], x T) bool {
	if !e.caching || fc.Disabled() {
		return fc.Evaluate(x)
	}
	if fc.Complete() {
		return fc.Contains(x)
	}
	if fc.Contains(x) {
		fc.RecordHitCached()
		return true
	}
	if fc.Evaluate(x) {
		fc.RecordHit(x)
		return true
	}
	fc.RecordMiss()
	return false
}

func (e *enumerator[T]) release() {
	if e.active == nil {
		return
	}
	e.shared.scratch.put(e.active)
	e.active = nil
	e.residual = nil
}
