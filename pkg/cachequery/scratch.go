package cachequery

import (
	"sync"

	"github.com/ski-dive-dev/cachingcollections/pkg/filtercache"
)

// residualPool recycles the per-iteration residual-cache snapshot slices.
// Every enumerator allocates one of these at construction and drops it on
// exhaustion; for hot query loops that is one avoidable allocation per pass.
type residualPool[T comparable] struct {
	p sync.Pool
}

func newResidualPool[T comparable]() *residualPool[T] {
	return &residualPool[T]{
		p: sync.Pool{
			New: func() any {
				s := make([]*filtercache.FilterCache[T], 0, 8)
				return &s
			},
		},
	}
}

func (rp *residualPool[T]) get() []*filtercache.FilterCache[T] {
	return (*rp.p.Get().(*[]*filtercache.FilterCache[T]))[:0]
}

// put clears the cache references so pooled slices don't pin caches, and
// discards oversized snapshots rather than keeping them resident.
func (rp *residualPool[T]) put(s []*filtercache.FilterCache[T]) {
	if cap(s) > 64 {
		return
	}
	for i := range s {
		s[i] = nil
	}
	s = s[:0]
	rp.p.Put(&s)
}
