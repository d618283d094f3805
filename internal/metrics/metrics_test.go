package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formcheck/internal/harness"
	"github.com/roach88/formcheck/internal/tracking"
)

func passingResult(name string, delta int) *harness.Result {
	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	r := harness.NewResult(name)
	r.Pass = true
	r.State = harness.StatePassed
	r.Delta = delta
	r.Submissions = delta
	r.After = tracking.Snapshot{Subject: "demo", Count: 100 + delta}
	r.StartedAt = start
	r.FinishedAt = start.Add(6 * time.Second)
	return r
}

// gather returns metric families keyed by name.
func gather(t *testing.T, r *Recorder) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := r.Gatherer().Gather()
	require.NoError(t, err)

	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func counterByLabel(t *testing.T, mf *dto.MetricFamily, label, value string) float64 {
	t.Helper()
	require.NotNil(t, mf)
	for _, m := range mf.GetMetric() {
		if labelValue(m, label) == value {
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("no series %s=%q in %s", label, value, mf.GetName())
	return 0
}

func TestNewRecorder_ExportsZeroFailures(t *testing.T) {
	families := gather(t, NewRecorder())

	scenarios := families["formcheck_scenarios_total"]
	assert.Equal(t, 0.0, counterByLabel(t, scenarios, "result", ResultPass))
	assert.Equal(t, 0.0, counterByLabel(t, scenarios, "result", ResultFail))
}

func TestObserve(t *testing.T) {
	rec := NewRecorder()

	rec.Observe(passingResult("all_questions_answerable", 24))
	rec.Observe(passingResult("unrequired_question_can_be_skipped", 1))

	failed := harness.NewResult("required_questions_cannot_be_skipped")
	failed.Submissions = 1
	failed.AddError(errors.New("submission 0: boom"))
	rec.Observe(failed)

	families := gather(t, rec)

	scenarios := families["formcheck_scenarios_total"]
	assert.Equal(t, 2.0, counterByLabel(t, scenarios, "result", ResultPass))
	assert.Equal(t, 1.0, counterByLabel(t, scenarios, "result", ResultFail))

	submissions := families["formcheck_submissions_total"]
	require.NotNil(t, submissions)
	assert.Equal(t, 26.0, submissions.GetMetric()[0].GetCounter().GetValue())

	deltas := map[string]float64{}
	for _, m := range families["formcheck_tracking_delta"].GetMetric() {
		deltas[labelValue(m, "scenario")] = m.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{
		"all_questions_answerable":           24,
		"unrequired_question_can_be_skipped": 1,
	}, deltas, "runs that never reconciled export no delta")

	hist := families["formcheck_scenario_duration_seconds"].GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(2), hist.GetSampleCount())
	assert.InDelta(t, 12.0, hist.GetSampleSum(), 1e-9)
}

func TestWriteTextfile(t *testing.T) {
	rec := NewRecorder()
	rec.Observe(passingResult("unrequired_question_can_be_skipped", 1))

	path := filepath.Join(t.TempDir(), "formcheck.prom")
	require.NoError(t, rec.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "# TYPE formcheck_scenarios_total counter")
	assert.Contains(t, text, `formcheck_scenarios_total{result="pass"} 1`)
	assert.Contains(t, text, `formcheck_tracking_delta{scenario="unrequired_question_can_be_skipped"} 1`)
}

func TestWriteTextfile_BadPath(t *testing.T) {
	err := NewRecorder().WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))
	assert.ErrorContains(t, err, "write metrics textfile")
}
