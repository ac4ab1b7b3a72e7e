// Command cachequery runs the caching query engine against a YAML dataset.
//
// The command demonstrates the wrapper-facing surface: it loads a dataset of
// people, optionally persists them through the BadgerDB-backed store and
// queries the store as a lazy source, then runs domain filters through a
// PersonQuery wrapper and prints counts, extrema, and per-cache statistics.
//
// Usage:
//
//	cachequery run --dataset people.yaml [--config engine.yaml] [--mem | --data DIR]
//
// Example:
//
//	# Query straight from the YAML slice
//	cachequery run --dataset people.yaml
//
//	# Persist into an in-memory BadgerDB store and query it lazily
//	cachequery run --dataset people.yaml --mem
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ski-dive-dev/cachingcollections/pkg/cachequery"
	"github.com/ski-dive-dev/cachingcollections/pkg/config"
	"github.com/ski-dive-dev/cachingcollections/pkg/source"
	"github.com/ski-dive-dev/cachingcollections/pkg/storage"
)

// Person is the demonstration item type.
type Person struct {
	ID      int    `yaml:"id"`
	Name    string `yaml:"name"`
	Age     int    `yaml:"age"`
	Active  bool   `yaml:"active"`
	Deleted bool   `yaml:"deleted"`
	Level   string `yaml:"level"`
}

// PersonQuery is a thin domain wrapper over the generic engine: it holds a
// Query and delegates, exposing domain-named chainable filters. Composition,
// not subclassing.
type PersonQuery struct {
	q *cachequery.Query[Person]
}

// NewPersonQuery wraps an engine handle.
func NewPersonQuery(q *cachequery.Query[Person]) *PersonQuery {
	return &PersonQuery{q: q}
}

// Active keeps people whose account is active.
func (pq *PersonQuery) Active() *PersonQuery {
	pq.q.AddFilter(func(p Person) bool { return p.Active }, "active")
	return pq
}

// NotDeleted keeps people whose record is not soft-deleted.
func (pq *PersonQuery) NotDeleted() *PersonQuery {
	pq.q.AddFilter(func(p Person) bool { return !p.Deleted }, "not_deleted")
	return pq
}

// Minors keeps people younger than 18.
func (pq *PersonQuery) Minors() *PersonQuery {
	pq.q.AddFilter(func(p Person) bool { return p.Age < 18 }, "minors")
	return pq
}

// Scoped forks a nested scope; filters added on the child vanish when the
// child is disposed.
func (pq *PersonQuery) Scoped() *PersonQuery {
	return &PersonQuery{q: pq.q.StartScopedQuery()}
}

// People materializes the current filtered view.
func (pq *PersonQuery) People() []Person { return pq.q.Items() }

// Dispose forwards disposal to the underlying handle.
func (pq *PersonQuery) Dispose() { pq.q.Dispose() }

func main() {
	root := &cobra.Command{
		Use:           "cachequery",
		Short:         "In-memory caching query engine demonstrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cachequery: %v\n", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		datasetPath string
		configPath  string
		dataDir     string
		inMemory    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a YAML dataset and run the demonstration queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			people, err := loadDataset(datasetPath)
			if err != nil {
				return err
			}
			fmt.Printf("Loaded %d people from %s\n", len(people), datasetPath)

			src, cleanup, err := buildSource(people, dataDir, inMemory)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := []cachequery.Option{
				cachequery.WithUtilizationThreshold(cfg.UtilizationThreshold),
				cachequery.WithFilteredCountMemoSize(cfg.FilteredCountMemoSize),
			}
			if !cfg.DedupPolicy {
				opts = append(opts, cachequery.WithoutDedup())
			}
			q, err := cachequery.New[Person](src, opts...)
			if err != nil {
				return err
			}
			defer q.Dispose()

			return runDemo(q)
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "YAML file with the people dataset (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "engine config YAML")
	cmd.Flags().StringVar(&dataDir, "data", "", "persist the dataset into a BadgerDB store at this directory and query it")
	cmd.Flags().BoolVar(&inMemory, "mem", false, "persist the dataset into an in-memory BadgerDB store and query it")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func loadDataset(path string) ([]Person, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	var people []Person
	if err := yaml.Unmarshal(data, &people); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	return people, nil
}

// buildSource picks the query source: the raw slice, or a BadgerDB store the
// dataset is first persisted into.
func buildSource(people []Person, dataDir string, inMemory bool) (source.Source[Person], func(), error) {
	if dataDir == "" && !inMemory {
		return source.FromSlice(people), func() {}, nil
	}

	var (
		store *storage.Store[Person]
		err   error
	)
	if inMemory {
		store, err = storage.OpenInMemory[Person]()
	} else {
		store, err = storage.Open[Person](dataDir)
	}
	if err != nil {
		return nil, nil, err
	}
	if err := store.PutAll(people...); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, func() { store.Close() }, nil
}

func runDemo(q *cachequery.Query[Person]) error {
	pq := NewPersonQuery(q)

	fmt.Printf("\nTotal people: %d\n", q.Count())

	pq.Active()
	fmt.Printf("Active: %d\n", q.FilteredCount())

	pq.NotDeleted()
	fmt.Printf("Active and not deleted: %d\n", q.FilteredCount())
	for _, p := range pq.People() {
		fmt.Printf("  - %s (age %d, level %s)\n", p.Name, p.Age, p.Level)
	}

	if oldest, ok := q.ItemWithMax(func(p Person) int { return p.Age }); ok {
		fmt.Printf("Oldest: %s (%d)\n", oldest.Name, oldest.Age)
	}
	if youngest, ok := q.ItemWithMin(func(p Person) int { return p.Age }); ok {
		fmt.Printf("Youngest: %s (%d)\n", youngest.Name, youngest.Age)
	}

	// Nested scope: minors filter lives only inside the scope.
	scope := pq.Scoped().Minors()
	fmt.Printf("Active, not deleted minors (scoped): %d\n", len(scope.People()))
	scope.Dispose()

	fmt.Println("\nFilter cache statistics:")
	for _, st := range q.CacheStats() {
		fmt.Printf("  %-12s hits=%-5d misses=%-5d size=%-5d complete=%-5v disabled=%v\n",
			st.Name, st.Hits, st.Misses, st.Size, st.Complete, st.Disabled)
	}

	return q.Err()
}
