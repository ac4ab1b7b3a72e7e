// Package source defines the item sources a query engine can enumerate.
//
// A Source is any sequence of items that can be walked front to back. The
// engine requires sources to be deterministic and replay-equal: two passes
// over the same source yield the same items in the same order. Materialized
// slices satisfy this trivially; lazy sources must guarantee it themselves.
//
// Usage:
//
//	src := source.FromSlice(people)
//
//	lazy := source.FromFunc(func() iter.Seq[*Person] {
//		return readPeople(path)
//	})
//
//	counted := source.Count(src) // observe how often the source is walked
package source

import (
	"iter"
	"sync/atomic"
)

// Source is a deterministic, replayable sequence of items.
//
// Items returns a fresh single-use iterator over the sequence. Callers may
// abandon the iterator at any point by breaking out of the range loop; the
// source must tolerate partial consumption.
type Source[T any] interface {
	Items() iter.Seq[T]
}

// Slice is a materialized Source backed by a slice. The zero value is an
// empty source.
type Slice[T any] struct {
	items []T
}

// FromSlice wraps a slice as a Source. The slice is not copied; the caller
// must not mutate it while queries are live.
func FromSlice[T any](items []T) *Slice[T] {
	return &Slice[T]{items: items}
}

// Items yields the slice elements in order.
func (s *Slice[T]) Items() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range s.items {
			if !yield(item) {
				return
			}
		}
	}
}

// Len returns the number of items, duplicates included.
func (s *Slice[T]) Len() int { return len(s.items) }

// Func is a lazy Source built from an iterator factory. The factory is
// invoked once per pass and must produce replay-equal sequences.
type Func[T any] struct {
	seq func() iter.Seq[T]
}

// FromFunc wraps an iterator factory as a Source.
//
// Example:
//
//	src := source.FromFunc(func() iter.Seq[int] {
//		return func(yield func(int) bool) {
//			for i := 0; i < 100; i++ {
//				if !yield(i) {
//					return
//				}
//			}
//		}
//	})
func FromFunc[T any](seq func() iter.Seq[T]) *Func[T] {
	return &Func[T]{seq: seq}
}

// Items starts a fresh pass over the underlying sequence.
func (f *Func[T]) Items() iter.Seq[T] { return f.seq() }

// Counter wraps a Source and counts passes over it. Queries backed by a
// caching engine should walk their source exactly once; wrapping the source
// in a Counter makes that observable.
//
// Example:
//
//	counted := source.Count(source.FromSlice(people))
//	q := cachequery.Must(cachequery.New[*Person](counted))
//
//	q.Count()
//	q.Count()
//	counted.Completed() // 1: the second call answered from shared state
type Counter[T any] struct {
	inner     Source[T]
	started   atomic.Int64
	completed atomic.Int64
}

// Count wraps a Source with pass counters.
func Count[T any](inner Source[T]) *Counter[T] {
	return &Counter[T]{inner: inner}
}

// Items yields the inner source's items, bumping Started at the first item
// request and Completed when the pass runs to exhaustion. An abandoned pass
// counts as started but not completed.
func (c *Counter[T]) Items() iter.Seq[T] {
	return func(yield func(T) bool) {
		c.started.Add(1)
		for item := range c.inner.Items() {
			if !yield(item) {
				return
			}
		}
		c.completed.Add(1)
	}
}

// Started returns the number of passes begun over the inner source.
func (c *Counter[T]) Started() int { return int(c.started.Load()) }

// Completed returns the number of passes that ran to exhaustion.
func (c *Counter[T]) Completed() int { return int(c.completed.Load()) }
