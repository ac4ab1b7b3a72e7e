package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   int
	Name string
	Tags []string
}

func newTestStore(t *testing.T) *Store[record] {
	t.Helper()
	store, err := OpenInMemory[record]()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	want := []record{
		{ID: 1, Name: "alpha", Tags: []string{"a", "b"}},
		{ID: 2, Name: "beta"},
		{ID: 3, Name: "gamma", Tags: []string{"c"}},
	}
	require.NoError(t, store.PutAll(want...))

	var got []record
	for r := range store.Items() {
		got = append(got, r)
	}
	require.NoError(t, store.Err())
	assert.ElementsMatch(t, want, got)
}

func TestStore_DuplicatePutIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	r := record{ID: 1, Name: "alpha"}
	require.NoError(t, store.Put(r))
	require.NoError(t, store.Put(r))
	require.NoError(t, store.Put(r))

	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "content-addressed keys collapse duplicate stores")
}

func TestStore_PartialConsumption(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutAll(
		record{ID: 1, Name: "alpha"},
		record{ID: 2, Name: "beta"},
	))

	n := 0
	for range store.Items() {
		n++
		break
	}
	assert.Equal(t, 1, n)
	assert.NoError(t, store.Err())

	// A fresh pass yields everything again.
	n = 0
	for range store.Items() {
		n++
	}
	assert.Equal(t, 2, n)
}

func TestStore_DeterministicOrder(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutAll(
		record{ID: 1, Name: "alpha"},
		record{ID: 2, Name: "beta"},
		record{ID: 3, Name: "gamma"},
	))

	var first, second []record
	for r := range store.Items() {
		first = append(first, r)
	}
	for r := range store.Items() {
		second = append(second, r)
	}
	assert.Equal(t, first, second, "passes over a fixed store must replay equal")
}

func TestStore_Empty(t *testing.T) {
	store := newTestStore(t)

	n, err := store.Len()
	require.NoError(t, err)
	assert.Zero(t, n)

	count := 0
	for range store.Items() {
		count++
	}
	assert.Zero(t, count)
	assert.NoError(t, store.Err())
}
