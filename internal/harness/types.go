package harness

import "github.com/roach88/library/internal/ir"

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// TraceEvent is one invocation or completion in a scenario trace.
// Content-addressed IDs are left out so traces stay readable.
type TraceEvent struct {
	Type   string      `json:"type"`
	Op     ir.Op       `json:"op,omitempty"`
	Caller ir.Identity `json:"caller,omitempty"`
	Args   ir.Object   `json:"args,omitempty"`
	Status ir.Status   `json:"status,omitempty"`
	Result ir.Object   `json:"result,omitempty"`
	Seq    int64       `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains all invocations and completions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages; empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the persisted state after the flow.
	State ir.State `json:"state"`

	// Digest is the content digest of State.
	Digest string `json:"digest"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCall appends both halves of a journaled call to the trace.
func (r *Result) AddCall(call ir.Call) {
	inv, comp := call.Invocation, call.Completion
	r.Trace = append(r.Trace,
		TraceEvent{
			Type:   EventInvocation,
			Op:     inv.Op,
			Caller: inv.Caller,
			Args:   inv.Args,
			Seq:    inv.Seq,
		},
		TraceEvent{
			Type:   EventCompletion,
			Status: comp.Status,
			Result: comp.Result,
			Seq:    comp.Seq,
		},
	)
}
