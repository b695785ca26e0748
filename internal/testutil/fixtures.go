// Package testutil provides fixtures shared by tests and the scenario harness.
package testutil

import (
	"fmt"

	"github.com/roach88/library/internal/engine"
	"github.com/roach88/library/internal/ir"
)

// SampleState returns a fresh two-book state: "Dune" owned by alice at
// index 0 and "Emma" owned by bob at index 1.
func SampleState() ir.State {
	return ir.State{
		Books: []string{"Dune;SciFi;Herbert", "Emma;Classic;Austen"},
		Owners: []ir.Ownership{
			{Owner: "alice", RecordIndex: 0},
			{Owner: "bob", RecordIndex: 1},
		},
	}
}

// TokenList returns n tokens named "<prefix>-1" through "<prefix>-n".
func TokenList(prefix string, n int) []string {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("%s-%d", prefix, i+1)
	}
	return tokens
}

// Tokens returns a generator yielding TokenList(prefix, n) in order.
//
// The same prefix and call count produce byte-identical journals, which is
// what golden traces rely on.
func Tokens(prefix string, n int) *engine.FixedGenerator {
	return engine.NewFixedGenerator(TokenList(prefix, n)...)
}
