package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/library/internal/engine"
	"github.com/roach88/library/internal/ir"
	"github.com/roach88/library/internal/seed"
)

// Scenario is a seeded flow of calls plus assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed is the initial batch the library is created with.
	Seed seed.File `yaml:"seed"`

	// Flow contains the calls, executed in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`

	// Token prefixes the fixed per-call tokens ("<token>-1", "<token>-2", ...).
	// Defaults to "test-token".
	Token string `yaml:"token,omitempty"`
}

// FlowStep is one call in a scenario.
type FlowStep struct {
	// Invoke is the operation name, e.g. "update_book".
	Invoke string `yaml:"invoke"`

	// Caller is the identity making the call.
	Caller string `yaml:"caller"`

	// Args contains the operation arguments.
	Args map[string]any `yaml:"args"`

	// Expect, if set, is checked against the completion.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Status is the expected completion status (ok, not_owner, ...).
	Status string `yaml:"status,omitempty"`

	// Result is a subset match against the completion result.
	Result map[string]any `yaml:"result,omitempty"`

	// Error is the expected runtime error code. Exclusive with Status.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op is the operation (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Args is a subset match on invocation args (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Ops is the expected order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of invocations (trace_count).
	Count int `yaml:"count,omitempty"`

	// Owner is the identity to query (owner_books).
	Owner string `yaml:"owner,omitempty"`

	// Books is the expected book list (final_state, owner_books).
	Books []string `yaml:"books,omitempty"`

	// Owners is the expected ownership list (final_state).
	Owners []seed.Owner `yaml:"owners,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertOwnerBooks    = "owner_books"
)

// DefaultToken is the token prefix used when a scenario names none.
const DefaultToken = "test-token"

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if !ir.Op(step.Invoke).Valid() {
			return fmt.Errorf("flow[%d]: unknown operation %q", i, step.Invoke)
		}
		if step.Caller == "" {
			return fmt.Errorf("flow[%d]: caller is required", i)
		}
		if step.Expect != nil {
			if err := validateExpect(i, step.Expect); err != nil {
				return err
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateExpect(index int, e *ExpectClause) error {
	switch {
	case e.Error != "" && (e.Status != "" || e.Result != nil):
		return fmt.Errorf("flow[%d].expect: error excludes status and result", index)
	case e.Error == "" && e.Status == "":
		return fmt.Errorf("flow[%d].expect: status or error is required", index)
	case e.Error != "":
		switch engine.RuntimeErrorCode(e.Error) {
		case engine.ErrCodeInvalidArgs, engine.ErrCodeUnknownOp:
		default:
			return fmt.Errorf("flow[%d].expect: unknown error code %q", index, e.Error)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Books == nil && a.Owners == nil {
			return fmt.Errorf("assertions[%d]: books or owners is required for final_state", index)
		}
	case AssertOwnerBooks:
		if a.Owner == "" {
			return fmt.Errorf("assertions[%d]: owner is required for owner_books", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
