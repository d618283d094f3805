package tracking

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formcheck/internal/failure"
	"github.com/roach88/formcheck/internal/testutil"
)

const subject = "demo"

func newTestReconciler(t *testing.T, endpoint string, waiter Waiter) *Reconciler {
	t.Helper()
	r, err := NewReconciler(Config{
		Endpoint: endpoint,
		Username: "demo",
		Password: "secret",
		Waiter:   waiter,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return r
}

func TestNewReconciler_RequiresEndpoint(t *testing.T) {
	_, err := NewReconciler(Config{})
	assert.ErrorContains(t, err, "tracking endpoint is required")
}

func TestCountEvents(t *testing.T) {
	fake := testutil.NewFakeTracking(t, "demo", "secret")
	fake.SetCount(subject, 7)
	r := newTestReconciler(t, fake.URL(), nil)

	snap, err := r.CountEvents(context.Background(), subject)
	require.NoError(t, err)

	assert.Equal(t, subject, snap.Subject)
	assert.Equal(t, 7, snap.Count)
	assert.False(t, snap.TakenAt.IsZero())

	queries := fake.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, subject, queries[0].Subject)
	assert.True(t, queries[0].Authorized)
}

func TestCountEvents_RequestShape(t *testing.T) {
	var gotBody string
	var gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		_, _ = io.WriteString(w, `{"events":[]}`)
	}))
	t.Cleanup(srv.Close)

	r := newTestReconciler(t, srv.URL, nil)
	snap, err := r.CountEvents(context.Background(), subject)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Count)
	assert.JSONEq(t, `{"customer_ids":{"registered":"demo"}}`, gotBody)
	assert.Equal(t, "Basic ZGVtbzpzZWNyZXQ=", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
}

func TestCountEvents_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   failure.Code
	}{
		{"server error", http.StatusInternalServerError, `{"events":[]}`, failure.CodeTrackingQueryFailed},
		{"not json", http.StatusOK, `<html>oops</html>`, failure.CodeTrackingQueryFailed},
		{"events missing", http.StatusOK, `{"success":true}`, failure.CodeTrackingQueryFailed},
		{"events null", http.StatusOK, `{"events":null}`, failure.CodeTrackingQueryFailed},
		{"events not array", http.StatusOK, `{"events":{"a":1}}`, failure.CodeTrackingQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeTracking(t, "demo", "secret")
			fake.Override(func(string, int) (int, string) { return tt.status, tt.body })
			r := newTestReconciler(t, fake.URL(), nil)

			snap, err := r.CountEvents(context.Background(), subject)
			require.Error(t, err)
			assert.True(t, failure.Is(err, tt.want), "got %v", err)
			assert.Equal(t, Snapshot{}, snap)
		})
	}
}

func TestCountEvents_Unauthorized(t *testing.T) {
	fake := testutil.NewFakeTracking(t, "demo", "other-password")
	r := newTestReconciler(t, fake.URL(), nil)

	_, err := r.CountEvents(context.Background(), subject)
	assert.True(t, failure.Is(err, failure.CodeTrackingQueryFailed))
}

func TestCountEvents_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	r := newTestReconciler(t, endpoint, nil)

	_, err := r.CountEvents(context.Background(), subject)
	assert.True(t, failure.Is(err, failure.CodeTransportFailure))
}

func TestReconcile_NoChange(t *testing.T) {
	fake := testutil.NewFakeTracking(t, "demo", "secret")
	fake.SetCount(subject, 4)
	waiter := &testutil.RecordingWaiter{}
	r := newTestReconciler(t, fake.URL(), waiter)
	ctx := context.Background()

	baseline, err := r.CountEvents(ctx, subject)
	require.NoError(t, err)

	delta, after, err := r.Reconcile(ctx, baseline, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, Delta(0), delta)
	assert.Equal(t, 4, after.Count)
	assert.Equal(t, []time.Duration{5 * time.Second}, waiter.Waits())
}

func TestReconcile_CountsDelayedEventsAfterSettle(t *testing.T) {
	fake := testutil.NewFakeTracking(t, "demo", "secret")
	fake.SetCount(subject, 10)
	fake.SetDelayed(true)
	waiter := &testutil.RecordingWaiter{OnWait: fake.Settle}
	r := newTestReconciler(t, fake.URL(), waiter)
	ctx := context.Background()

	baseline, err := r.CountEvents(ctx, subject)
	require.NoError(t, err)

	fake.AddEvents(subject, 3)

	// Not yet visible before the settle wait.
	early, err := r.CountEvents(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, 10, early.Count)

	delta, _, err := r.Reconcile(ctx, baseline, time.Second)
	require.NoError(t, err)
	assert.Equal(t, Delta(3), delta)
}

func TestReconcile_WaitIsUnconditional(t *testing.T) {
	fake := testutil.NewFakeTracking(t, "demo", "secret")
	waiter := &testutil.RecordingWaiter{}
	r := newTestReconciler(t, fake.URL(), waiter)
	ctx := context.Background()

	baseline := Snapshot{Subject: subject, Count: 0}
	for i := 0; i < 3; i++ {
		_, _, err := r.Reconcile(ctx, baseline, 2*time.Second)
		require.NoError(t, err)
	}
	assert.Len(t, waiter.Waits(), 3)
}

func TestReconcile_NegativeDeltaFailsLoudly(t *testing.T) {
	fake := testutil.NewFakeTracking(t, "demo", "secret")
	fake.SetCount(subject, 2)
	r := newTestReconciler(t, fake.URL(), &testutil.RecordingWaiter{})

	baseline := Snapshot{Subject: subject, Count: 5}
	delta, after, err := r.Reconcile(context.Background(), baseline, 0)

	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.CodeTrackingNonMonotonic))
	assert.Equal(t, Delta(0), delta)
	assert.Equal(t, 2, after.Count)
}

func TestReconcile_QueryFailurePropagates(t *testing.T) {
	fake := testutil.NewFakeTracking(t, "demo", "secret")
	fake.Override(func(string, int) (int, string) { return http.StatusOK, `{}` })
	r := newTestReconciler(t, fake.URL(), &testutil.RecordingWaiter{})

	_, _, err := r.Reconcile(context.Background(), Snapshot{Subject: subject, Count: 1}, 0)
	assert.True(t, failure.Is(err, failure.CodeTrackingQueryFailed))
}

func TestReconcile_WaitCancelled(t *testing.T) {
	fake := testutil.NewFakeTracking(t, "demo", "secret")
	r := newTestReconciler(t, fake.URL(), SleepWaiter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := r.Reconcile(ctx, Snapshot{Subject: subject}, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.Queries())
}

func TestDiff(t *testing.T) {
	b := Snapshot{Subject: subject, Count: 12}

	d, err := Diff(b, Snapshot{Subject: subject, Count: 12})
	require.NoError(t, err)
	assert.Equal(t, Delta(0), d)

	d, err = Diff(b, Snapshot{Subject: subject, Count: 36})
	require.NoError(t, err)
	assert.Equal(t, Delta(24), d)

	_, err = Diff(b, Snapshot{Subject: subject, Count: 11})
	assert.True(t, failure.Is(err, failure.CodeTrackingNonMonotonic))

	_, err = Diff(b, Snapshot{Subject: "other", Count: 12})
	assert.ErrorContains(t, err, "different subjects")
}

func TestSleepWaiter(t *testing.T) {
	start := time.Now()
	require.NoError(t, SleepWaiter{}.Wait(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	require.NoError(t, SleepWaiter{}.Wait(context.Background(), 0))
}
