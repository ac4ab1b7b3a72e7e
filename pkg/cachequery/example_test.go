package cachequery_test

import (
	"fmt"

	"github.com/ski-dive-dev/cachingcollections/pkg/cachequery"
)

type account struct {
	Name    string
	Balance int
	Frozen  bool
}

// accountQuery wraps the generic engine with domain-named filters: the
// wrapper holds a Query and delegates, exposing its own concrete type for
// chaining.
type accountQuery struct {
	q *cachequery.Query[*account]
}

func (aq *accountQuery) Open() *accountQuery {
	aq.q.AddFilter(func(a *account) bool { return !a.Frozen }, "open")
	return aq
}

func (aq *accountQuery) InCredit() *accountQuery {
	aq.q.AddFilter(func(a *account) bool { return a.Balance > 0 }, "in_credit")
	return aq
}

func (aq *accountQuery) Dispose() { aq.q.Dispose() }

func Example() {
	accounts := []*account{
		{Name: "ops", Balance: 120},
		{Name: "legacy", Balance: 0, Frozen: true},
		{Name: "payroll", Balance: 3400},
		{Name: "petty", Balance: -20},
	}

	aq := &accountQuery{q: cachequery.Must(cachequery.NewFromSlice(accounts))}
	defer aq.Dispose()

	aq.Open().InCredit()
	fmt.Println("matches:", aq.q.FilteredCount())

	richest, _ := aq.q.ItemWithMax(func(a *account) int { return a.Balance })
	fmt.Println("richest:", richest.Name)

	// Output:
	// matches: 2
	// richest: payroll
}
