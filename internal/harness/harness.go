package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/formcheck/internal/config"
	"github.com/roach88/formcheck/internal/form"
	"github.com/roach88/formcheck/internal/tracking"
)

// Submitter sends one answer set to the form.
type Submitter interface {
	Submit(ctx context.Context, answers form.Answers, opts form.Options) (*form.Response, error)
}

// Tracker reads the tracking service.
type Tracker interface {
	CountEvents(ctx context.Context, subject string) (tracking.Snapshot, error)
	Reconcile(ctx context.Context, baseline tracking.Snapshot, settle time.Duration) (tracking.Delta, tracking.Snapshot, error)
}

// Options configures a Harness.
type Options struct {
	Forms    Submitter
	Tracker  Tracker
	Fixtures config.Fixtures

	// Subject is the tracking subject whose events are counted.
	Subject string

	// SettleDelay is waited before every reconciliation unless the
	// scenario overrides it.
	SettleDelay time.Duration

	Logger *slog.Logger

	// Now stamps results. Defaults to time.Now.
	Now func() time.Time
}

// Harness executes scenarios one at a time.
// It keeps no state between runs; each run's baseline lives in its Result.
type Harness struct {
	forms    Submitter
	tracker  Tracker
	fixtures config.Fixtures
	subject  string
	settle   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Harness.
func New(opts Options) (*Harness, error) {
	if opts.Forms == nil {
		return nil, errors.New("harness: form submitter is required")
	}
	if opts.Tracker == nil {
		return nil, errors.New("harness: tracker is required")
	}
	if opts.Subject == "" {
		return nil, errors.New("harness: tracking subject is required")
	}
	h := &Harness{
		forms:    opts.Forms,
		tracker:  opts.Tracker,
		fixtures: opts.Fixtures,
		subject:  opts.Subject,
		settle:   opts.SettleDelay,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h, nil
}

// Run captures a fresh baseline and executes the scenario.
//
// The returned error is the failure that ended the run; the Result records
// how far the run got either way.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult(scenario.Name)
	result.StartedAt = h.now()

	baseline, err := h.tracker.CountEvents(ctx, h.subject)
	if err != nil {
		return h.fail(result, fmt.Errorf("capture baseline: %w", err))
	}

	return h.runFrom(ctx, scenario, baseline, result)
}

// RunFrom executes the scenario against a baseline supplied by the caller.
func (h *Harness) RunFrom(ctx context.Context, scenario *Scenario, baseline tracking.Snapshot) (*Result, error) {
	result := NewResult(scenario.Name)
	result.StartedAt = h.now()
	return h.runFrom(ctx, scenario, baseline, result)
}

// RunAll executes scenarios sequentially. A failing scenario does not stop
// the ones after it.
func (h *Harness) RunAll(ctx context.Context, scenarios []*Scenario) []*Result {
	results := make([]*Result, 0, len(scenarios))
	for _, scenario := range scenarios {
		if ctx.Err() != nil {
			break
		}
		result, _ := h.Run(ctx, scenario)
		results = append(results, result)
	}
	return results
}

func (h *Harness) runFrom(ctx context.Context, scenario *Scenario, baseline tracking.Snapshot, result *Result) (*Result, error) {
	logger := h.logger.With("scenario", scenario.Name)

	if scenario.ExpectDelta == nil {
		return h.fail(result, fmt.Errorf("scenario %s: expect_delta is required", scenario.Name))
	}
	result.ExpectedDelta = *scenario.ExpectDelta

	submissions, err := scenario.Expand(h.fixtures)
	if err != nil {
		return h.fail(result, fmt.Errorf("scenario %s: %w", scenario.Name, err))
	}

	result.Baseline = baseline
	result.State = StateBaselineCaptured
	result.addEvent(TraceEvent{Type: EventBaseline, Count: baseline.Count})
	logger.Info("baseline captured", "subject", baseline.Subject, "count", baseline.Count)

	result.State = StateSubmitting
	for i, sub := range submissions {
		answers, err := sub.FormAnswers(h.fixtures)
		if err != nil {
			return h.fail(result, fmt.Errorf("submission %d: %w", i, err))
		}

		resp, err := h.forms.Submit(ctx, answers, form.Options{MultipleAnswers: sub.MultipleAnswers})
		if err != nil {
			result.addEvent(TraceEvent{Type: EventSubmit, ExpectText: sub.ExpectText, Error: err.Error()})
			return h.fail(result, fmt.Errorf("submission %d: %w", i, err))
		}
		result.Submissions++
		result.addEvent(TraceEvent{
			Type:       EventSubmit,
			Payload:    resp.Sent.Encode(),
			Status:     resp.StatusCode,
			ExpectText: sub.ExpectText,
		})

		if err := AssertResponseContains(logger, resp, sub.ExpectText); err != nil {
			return h.failAssertion(result, err, fmt.Sprintf("submission %d", i))
		}
		logger.Debug("submission verified", "index", i, "answers", answers.String())
	}

	settle := h.settle
	if scenario.SettleDelay != nil {
		settle = *scenario.SettleDelay
	}
	result.State = StateSettling
	logger.Info("settling", "delay", settle, "submissions", result.Submissions)

	delta, after, err := h.tracker.Reconcile(ctx, baseline, settle)
	if err != nil {
		if after.Subject != "" {
			result.After = after
		}
		result.addEvent(TraceEvent{Type: EventReconcile, Count: after.Count, Error: err.Error()})
		return h.fail(result, fmt.Errorf("reconcile: %w", err))
	}
	result.After = after
	result.Delta = int(delta)
	result.State = StateReconciled
	result.addEvent(TraceEvent{Type: EventReconcile, Count: after.Count, Delta: int(delta)})

	if err := AssertDeltaEquals(logger, delta, result.ExpectedDelta); err != nil {
		return h.failAssertion(result, err, "reconcile")
	}

	result.Pass = true
	result.State = StatePassed
	result.FinishedAt = h.now()
	logger.Info("scenario passed", "delta", result.Delta)
	return result, nil
}

func (h *Harness) failAssertion(result *Result, err error, where string) (*Result, error) {
	var ae *AssertionError
	if errors.As(err, &ae) {
		ae.Trace = append([]TraceEvent(nil), result.Trace...)
	}
	return h.fail(result, fmt.Errorf("%s: %w", where, err))
}

func (h *Harness) fail(result *Result, err error) (*Result, error) {
	result.AddError(err)
	result.FinishedAt = h.now()
	h.logger.Error("scenario failed",
		"scenario", result.Scenario,
		"submissions", result.Submissions,
		"error", err,
	)
	return result, err
}
