package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeTracking is an in-process tracking endpoint.
//
// Events recorded with AddEvents become visible immediately unless Delayed is
// set, in which case they stay pending until Settle is called. Wiring Settle
// into a RecordingWaiter models the asynchronous side channel: a query issued
// before the settle wait does not see the new events.
type FakeTracking struct {
	Server *httptest.Server

	Username string
	Password string

	mu       sync.Mutex
	visible  map[string]int
	pending  map[string]int
	delayed  bool
	override func(subject string, count int) (status int, body string)
	queries  []TrackingQuery
}

// TrackingQuery records one request to the fake.
type TrackingQuery struct {
	Subject    string
	Authorized bool
}

// NewFakeTracking starts a tracking fake that requires the given credentials.
// The server is closed when the test finishes.
func NewFakeTracking(t *testing.T, username, password string) *FakeTracking {
	t.Helper()
	f := &FakeTracking{
		Username: username,
		Password: password,
		visible:  make(map[string]int),
		pending:  make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the endpoint URL.
func (f *FakeTracking) URL() string {
	return f.Server.URL
}

// SetDelayed toggles whether new events wait for Settle.
func (f *FakeTracking) SetDelayed(delayed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delayed = delayed
}

// SetCount forces the visible count for subject.
func (f *FakeTracking) SetCount(subject string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible[subject] = n
}

// AddEvents records n events for subject.
func (f *FakeTracking) AddEvents(subject string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delayed {
		f.pending[subject] += n
		return
	}
	f.visible[subject] += n
}

// Settle makes all pending events visible.
func (f *FakeTracking) Settle() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for subject, n := range f.pending {
		f.visible[subject] += n
	}
	f.pending = make(map[string]int)
}

// Count returns the visible count for subject.
func (f *FakeTracking) Count(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[subject]
}

// Override replaces the response for subsequent queries. The function gets
// the subject and its visible count; returning status 0 falls through to the
// normal response.
func (f *FakeTracking) Override(fn func(subject string, count int) (int, string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.override = fn
}

// Queries returns the requests received so far.
func (f *FakeTracking) Queries() []TrackingQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]TrackingQuery(nil), f.queries...)
}

func (f *FakeTracking) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, pass, ok := r.BasicAuth()
	authorized := ok && user == f.Username && pass == f.Password

	var body struct {
		CustomerIDs struct {
			Registered string `json:"registered"`
		} `json:"customer_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	subject := body.CustomerIDs.Registered

	f.mu.Lock()
	f.queries = append(f.queries, TrackingQuery{Subject: subject, Authorized: authorized})
	count := f.visible[subject]
	override := f.override
	f.mu.Unlock()

	if !authorized {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	if override != nil {
		if status, raw := override(subject, count); status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprint(w, raw)
			return
		}
	}

	events := make([]map[string]any, count)
	for i := range events {
		events[i] = map[string]any{"type": "survey", "seq": i + 1}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "events": events})
}
