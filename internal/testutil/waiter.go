package testutil

import (
	"context"
	"sync"
	"time"
)

// RecordingWaiter is a zero-delay waiter that remembers every requested wait.
// OnWait, if set, runs on each wait (e.g. FakeTracking.Settle).
type RecordingWaiter struct {
	OnWait func()

	mu    sync.Mutex
	waits []time.Duration
}

// Wait records d and returns immediately unless ctx is already done.
func (w *RecordingWaiter) Wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	w.waits = append(w.waits, d)
	w.mu.Unlock()
	if w.OnWait != nil {
		w.OnWait()
	}
	return nil
}

// Waits returns the recorded durations.
func (w *RecordingWaiter) Waits() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.waits...)
}
