// Package tracking counts events recorded by the tracking service and turns
// pairs of counts into deltas.
//
// The tracking service is eventually consistent: an accepted submission shows
// up as an event some time later. Reconcile therefore waits a fixed settle
// delay before re-querying instead of polling, trading latency for a bounded
// number of requests against the tracked service.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/formcheck/internal/failure"
)

// Snapshot is the event count for one subject at a point in time.
type Snapshot struct {
	Subject string
	Count   int
	TakenAt time.Time
}

// Delta is the number of events recorded between two snapshots.
type Delta int

// Config configures a Reconciler.
type Config struct {
	Endpoint string
	Username string
	Password string

	// HTTPClient performs requests. Defaults to a 30s-timeout client.
	HTTPClient *http.Client

	// Waiter provides the settle delay. Defaults to SleepWaiter.
	Waiter Waiter

	// Now stamps snapshots. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Reconciler queries the tracking endpoint.
type Reconciler struct {
	endpoint string
	username string
	password string
	http     *http.Client
	waiter   Waiter
	now      func() time.Time
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg Config) (*Reconciler, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tracking endpoint is required")
	}
	r := &Reconciler{
		endpoint: cfg.Endpoint,
		username: cfg.Username,
		password: cfg.Password,
		http:     cfg.HTTPClient,
		waiter:   cfg.Waiter,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
	if r.http == nil {
		r.http = &http.Client{Timeout: 30 * time.Second}
	}
	if r.waiter == nil {
		r.waiter = SleepWaiter{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

type queryBody struct {
	CustomerIDs customerIDs `json:"customer_ids"`
}

type customerIDs struct {
	Registered string `json:"registered"`
}

// CountEvents returns the current number of events for subject.
//
// Any failure, including a response without an events array, is returned as
// failure.CodeTrackingQueryFailed or failure.CodeTransportFailure. A count of
// zero is only ever returned when the service reported zero events.
func (r *Reconciler) CountEvents(ctx context.Context, subject string) (Snapshot, error) {
	body, err := json.Marshal(queryBody{CustomerIDs: customerIDs{Registered: subject}})
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode tracking query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return Snapshot{}, fmt.Errorf("build tracking query: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.username, r.password)

	resp, err := r.http.Do(req)
	if err != nil {
		r.logger.Error("tracking POST request failed", "url", r.endpoint, "error", err)
		return Snapshot{}, failure.Transport("tracking POST request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		r.logger.Error("tracking POST request failed", "url", r.endpoint, "error", err)
		return Snapshot{}, failure.Transport("tracking response unreadable", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Error("tracking query rejected", "status", resp.StatusCode, "subject", subject)
		return Snapshot{}, failure.TrackingQuery(fmt.Sprintf("tracking endpoint returned HTTP %d", resp.StatusCode), nil)
	}

	count, err := countEvents(raw)
	if err != nil {
		r.logger.Error("tracking response malformed", "subject", subject, "error", err)
		return Snapshot{}, failure.TrackingQuery("tracking response malformed", err)
	}

	r.logger.Debug("tracking events counted", "subject", subject, "count", count)
	return Snapshot{Subject: subject, Count: count, TakenAt: r.now()}, nil
}

// countEvents returns len(events) from a tracking response body.
func countEvents(raw []byte) (int, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	field, ok := envelope["events"]
	if !ok {
		return 0, fmt.Errorf("response has no events field")
	}

	var events []json.RawMessage
	if err := json.Unmarshal(field, &events); err != nil || events == nil {
		return 0, fmt.Errorf("events is not an array: %s", truncate(string(field), 64))
	}
	return len(events), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Reconcile waits settle, re-queries baseline's subject and returns the
// number of events recorded since baseline. The wait is unconditional.
// A decrease in count is returned as failure.CodeTrackingNonMonotonic.
func (r *Reconciler) Reconcile(ctx context.Context, baseline Snapshot, settle time.Duration) (Delta, Snapshot, error) {
	if err := r.waiter.Wait(ctx, settle); err != nil {
		return 0, Snapshot{}, fmt.Errorf("settle wait: %w", err)
	}

	after, err := r.CountEvents(ctx, baseline.Subject)
	if err != nil {
		return 0, Snapshot{}, err
	}

	delta, err := Diff(baseline, after)
	if err != nil {
		r.logger.Error("tracking count decreased",
			"subject", baseline.Subject,
			"before", baseline.Count,
			"after", after.Count,
		)
		return 0, after, err
	}
	return delta, after, nil
}

// Diff returns after - before for snapshots of the same subject.
func Diff(before, after Snapshot) (Delta, error) {
	if before.Subject != after.Subject {
		return 0, fmt.Errorf("snapshots are for different subjects: %q and %q", before.Subject, after.Subject)
	}
	if after.Count < before.Count {
		return 0, failure.NonMonotonic(before.Subject, before.Count, after.Count)
	}
	return Delta(after.Count - before.Count), nil
}
