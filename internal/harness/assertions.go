package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/library/internal/ir"
	"github.com/roach88/library/internal/library"
	"github.com/roach88/library/internal/seed"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			if event.Type == EventInvocation {
				fmt.Fprintf(&buf, "  [%d] %s by %s %v\n", i+1, event.Op, event.Caller, event.Args)
			}
		}
	}
	return buf.String()
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	want, err := convertArgs(a.Args)
	if err != nil {
		return fmt.Errorf("trace_contains args: %w", err)
	}
	for _, event := range trace {
		if event.Type == EventInvocation && string(event.Op) == a.Op && matchArgs(event.Args, want) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("op %s with args %v", a.Op, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that ops first appear in the given order.
// Intervening ops are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventInvocation {
			continue
		}
		op := string(event.Op)
		if _, seen := positions[op]; !seen {
			positions[op] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && string(event.Op) == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertFinalState(state ir.State, a Assertion) error {
	if a.Books != nil && !slices.Equal(a.Books, state.Books) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("books %q", a.Books),
			Actual:   fmt.Sprintf("books %q", state.Books),
		}
	}
	if a.Owners != nil {
		want := seed.File{Owners: a.Owners}.State().Owners
		if !slices.Equal(want, state.Owners) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("owners %v", want),
				Actual:   fmt.Sprintf("owners %v", state.Owners),
			}
		}
	}
	return nil
}

func assertOwnerBooks(state ir.State, a Assertion) error {
	got := library.FromState(state).BooksByOwner(ir.Identity(a.Owner))
	want := a.Books
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(want, got) {
		return &AssertionError{
			Type:     AssertOwnerBooks,
			Expected: fmt.Sprintf("%s owns %q", a.Owner, want),
			Actual:   fmt.Sprintf("%s owns %q", a.Owner, got),
		}
	}
	return nil
}

// matchArgs reports whether actual holds every key of expected with an equal
// value. Extra keys in actual are ignored.
func matchArgs(actual, expected ir.Object) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result and
// returns a message for each failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result.State, a)
		case AssertOwnerBooks:
			err = assertOwnerBooks(result.State, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
