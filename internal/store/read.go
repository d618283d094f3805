package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/formcheck/internal/failure"
	"github.com/roach88/formcheck/internal/harness"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded scenario run.
type Run struct {
	ID            string               `json:"id"`
	Scenario      string               `json:"scenario"`
	Pass          bool                 `json:"pass"`
	State         harness.State        `json:"state"`
	Subject       string               `json:"subject"`
	Baseline      int                  `json:"baseline"`
	After         int                  `json:"after"`
	Delta         int                  `json:"delta"`
	ExpectedDelta int                  `json:"expected_delta"`
	Submissions   int                  `json:"submissions"`
	Error         string               `json:"error,omitempty"`
	FailureCode   failure.Code         `json:"failure_code,omitempty"`
	StartedAt     time.Time            `json:"started_at"`
	FinishedAt    time.Time            `json:"finished_at"`
	Trace         []harness.TraceEvent `json:"trace,omitempty"`
}

// Filter narrows ListRuns.
type Filter struct {
	// Scenario restricts to one scenario name.
	Scenario string

	// FailedOnly drops passing runs.
	FailedOnly bool

	// Limit caps the number of runs returned. Zero means no limit.
	Limit int
}

const runColumns = `id, scenario, pass, state, subject, baseline, after, delta, expected_delta,
	submissions, error, failure_code, started_at, finished_at`

// ListRuns returns recorded runs, newest first. Traces are not loaded.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListRuns(ctx context.Context, filter Filter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if filter.Scenario != "" {
		where = append(where, "scenario = ?")
		args = append(args, filter.Scenario)
	}
	if filter.FailedOnly {
		where = append(where, "pass = 0")
	}

	query := "SELECT " + runColumns + " FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// GetRun returns one run with its trace.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}

	trace, err := s.readTrace(ctx, id)
	if err != nil {
		return Run{}, err
	}
	run.Trace = trace
	return run, nil
}

func (s *Store) readTrace(ctx context.Context, runID string) ([]harness.TraceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM run_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer rows.Close()

	trace := []harness.TraceEvent{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		ev, err := unmarshalEvent(payload)
		if err != nil {
			return nil, err
		}
		trace = append(trace, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run events: %w", err)
	}
	return trace, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run               Run
		pass              int
		state, code       string
		started, finished string
	)
	err := row.Scan(
		&run.ID,
		&run.Scenario,
		&pass,
		&state,
		&run.Subject,
		&run.Baseline,
		&run.After,
		&run.Delta,
		&run.ExpectedDelta,
		&run.Submissions,
		&run.Error,
		&code,
		&started,
		&finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.Pass = pass == 1
	run.State = harness.State(state)
	run.FailureCode = failure.Code(code)
	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	return run, nil
}
