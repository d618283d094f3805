package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures what a scenario run sent and measured.
// Timestamps are left out so snapshots are stable across runs.
type TraceSnapshot struct {
	ScenarioName  string       `json:"scenario_name"`
	Pass          bool         `json:"pass"`
	State         State        `json:"state"`
	ExpectedDelta int          `json:"expected_delta"`
	Delta         int          `json:"delta"`
	Trace         []TraceEvent `json:"trace"`
}

// MarshalSnapshot renders the result as indented JSON without HTML escaping,
// so form payloads stay readable in golden files.
func MarshalSnapshot(result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName:  result.Scenario,
		Pass:          result.Pass,
		State:         result.State,
		ExpectedDelta: result.ExpectedDelta,
		Delta:         result.Delta,
		Trace:         result.Trace,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// The harness must be wired to deterministic fakes for the comparison to be
// meaningful. Returns the run error, if any; a trace mismatch fails t.
func RunWithGolden(t *testing.T, h *Harness, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, runErr := h.Run(context.Background(), scenario)
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, runErr
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
