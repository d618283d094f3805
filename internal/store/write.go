package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/formcheck/internal/failure"
	"github.com/roach88/formcheck/internal/harness"
)

// WriteRun appends a scenario result and its trace to the history.
// Returns the generated run ID.
//
// The run row and its events are written in one transaction; a failure
// leaves no partial run behind.
func (s *Store) WriteRun(ctx context.Context, result *harness.Result) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("write run: generate id: %w", err)
	}
	runID := id.String()

	var errText string
	var code failure.Code
	if len(result.Errors) > 0 {
		errText = result.Errors[len(result.Errors)-1]
	}
	if result.Err != nil {
		code = failure.CodeOf(result.Err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, scenario, pass, state, subject, baseline, after, delta, expected_delta,
		 submissions, error, failure_code, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		result.Scenario,
		boolToInt(result.Pass),
		string(result.State),
		result.Baseline.Subject,
		result.Baseline.Count,
		result.After.Count,
		result.Delta,
		result.ExpectedDelta,
		result.Submissions,
		errText,
		string(code),
		formatTime(result.StartedAt),
		formatTime(result.FinishedAt),
	)
	if err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}

	for _, ev := range result.Trace {
		payload, err := marshalEvent(ev)
		if err != nil {
			return "", fmt.Errorf("write run: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_events (run_id, seq, type, payload)
			VALUES (?, ?, ?, ?)
		`, runID, ev.Seq, ev.Type, payload)
		if err != nil {
			return "", fmt.Errorf("write run event %d: %w", ev.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write run: commit: %w", err)
	}
	return runID, nil
}
