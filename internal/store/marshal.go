package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/formcheck/internal/harness"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// marshalEvent converts a trace event to JSON TEXT for storage.
// HTML escaping is disabled so form payloads stay readable in the database.
func marshalEvent(ev harness.TraceEvent) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func unmarshalEvent(data string) (harness.TraceEvent, error) {
	var ev harness.TraceEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return harness.TraceEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return ev, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
