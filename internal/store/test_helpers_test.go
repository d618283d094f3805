package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/formcheck/internal/harness"
	"github.com/roach88/formcheck/internal/tracking"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testStart = time.Date(2026, 3, 14, 9, 30, 0, 123456789, time.UTC)

// createTestResult creates a passing result with a three-event trace.
func createTestResult(scenario string) *harness.Result {
	r := harness.NewResult(scenario)
	r.Pass = true
	r.State = harness.StatePassed
	r.Baseline = tracking.Snapshot{Subject: "demo", Count: 100}
	r.After = tracking.Snapshot{Subject: "demo", Count: 101}
	r.Delta = 1
	r.ExpectedDelta = 1
	r.Submissions = 1
	r.Trace = []harness.TraceEvent{
		{Seq: 1, Type: harness.EventBaseline, Count: 100},
		{Seq: 2, Type: harness.EventSubmit, Payload: "csrf_token=t&question-0=Blue", Status: 200, ExpectText: "ok"},
		{Seq: 3, Type: harness.EventReconcile, Count: 101, Delta: 1},
	}
	r.StartedAt = testStart
	r.FinishedAt = testStart.Add(5 * time.Second)
	return r
}
