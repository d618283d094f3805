package harness

import (
	"time"

	"github.com/roach88/formcheck/internal/tracking"
)

// State is the position of a scenario run in its lifecycle.
type State string

const (
	StateIdle             State = "idle"
	StateBaselineCaptured State = "baseline_captured"
	StateSubmitting       State = "submitting"
	StateSettling         State = "settling"
	StateReconciled       State = "reconciled"
	StatePassed           State = "passed"
	StateFailed           State = "failed"
)

// Trace event types.
const (
	EventBaseline  = "baseline"
	EventSubmit    = "submit"
	EventReconcile = "reconcile"
)

// TraceEvent records one step of a run.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	// Submit events.
	Payload    string `json:"payload,omitempty"`
	Status     int    `json:"status,omitempty"`
	ExpectText string `json:"expect_text,omitempty"`

	// Baseline and reconcile events.
	Count int `json:"count,omitempty"`
	Delta int `json:"delta,omitempty"`

	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Scenario string `json:"scenario"`

	// Pass indicates every response and the final delta matched.
	Pass  bool  `json:"pass"`
	State State `json:"state"`

	Baseline      tracking.Snapshot `json:"baseline"`
	After         tracking.Snapshot `json:"after"`
	Delta         int               `json:"delta"`
	ExpectedDelta int               `json:"expected_delta"`

	// Submissions counts POSTs that returned a response.
	Submissions int `json:"submissions"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Err is the failure that ended the run, if any.
	Err error `json:"-"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewResult creates a result for a run that has not started.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		State:    StateIdle,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError records err as the failure that ended the run.
func (r *Result) AddError(err error) {
	r.Errors = append(r.Errors, err.Error())
	r.Err = err
	r.Pass = false
	r.State = StateFailed
}

func (r *Result) addEvent(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
