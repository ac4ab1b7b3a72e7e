package cachequery

import (
	"fmt"
	"math/rand"
)

// Person is the shared test fixture type.
type Person struct {
	ID      int
	Name    string
	Age     int
	Active  bool
	Deleted bool
	Level   string
}

var levels = []string{"Low", "Medium", "High", "VeryHigh"}

// seededPeople builds the 16-person grid: every combination of
// Active x Deleted x Level, with ages drawn from a fixed seed.
func seededPeople() []*Person {
	rng := rand.New(rand.NewSource(12345))
	var people []*Person
	id := 0
	for _, active := range []bool{true, false} {
		for _, deleted := range []bool{true, false} {
			for _, level := range levels {
				id++
				people = append(people, &Person{
					ID:      id,
					Name:    fmt.Sprintf("person-%02d", id),
					Age:     rng.Intn(80),
					Active:  active,
					Deleted: deleted,
					Level:   level,
				})
			}
		}
	}
	return people
}

func isActive(p *Person) bool     { return p.Active }
func isNotDeleted(p *Person) bool { return !p.Deleted }
func isDeleted(p *Person) bool    { return p.Deleted }
func isLowLevel(p *Person) bool   { return p.Level == "Low" }
func isMinor(p *Person) bool      { return p.Age < 18 }

// countWhere brute-forces the expected cardinality for a predicate set.
func countWhere(people []*Person, preds ...func(*Person) bool) int {
	n := 0
	for _, p := range people {
		ok := true
		for _, pred := range preds {
			if !pred(p) {
				ok = false
				break
			}
		}
		if ok {
			n++
		}
	}
	return n
}
