package harness

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/formcheck/internal/failure"
	"github.com/roach88/formcheck/internal/form"
	"github.com/roach88/formcheck/internal/tracking"
)

// bodyPreviewLen bounds how much of a response body an assertion reports.
const bodyPreviewLen = 200

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Code     failure.Code // Assertion category
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Run trace up to the failure, if attached
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Code)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Trace {
			switch ev.Type {
			case EventSubmit:
				fmt.Fprintf(&buf, "  [%d] submit %s -> %d\n", ev.Seq, ev.Payload, ev.Status)
			default:
				fmt.Fprintf(&buf, "  [%d] %s count=%d\n", ev.Seq, ev.Type, ev.Count)
			}
		}
	}

	return buf.String()
}

// FailureCode implements failure.Coded.
func (e *AssertionError) FailureCode() failure.Code {
	return e.Code
}

// AssertResponseContains checks that the response body contains expected.
// Both sides are NFC-normalized so composed and decomposed accents match.
func AssertResponseContains(logger *slog.Logger, resp *form.Response, expected string) error {
	body := ""
	if resp != nil {
		body = resp.Body
	}

	if strings.Contains(norm.NFC.String(body), norm.NFC.String(expected)) {
		return nil
	}

	logger.Error("expected text not found in response",
		"expected", expected,
		"body", preview(body),
	)
	return &AssertionError{
		Code:     failure.CodeUnexpectedResponseContent,
		Expected: fmt.Sprintf("response containing %q", expected),
		Actual:   fmt.Sprintf("%q", preview(body)),
	}
}

// AssertDeltaEquals checks that exactly expected events were recorded.
// Fewer means a submission was lost; more means something was submitted twice.
func AssertDeltaEquals(logger *slog.Logger, delta tracking.Delta, expected int) error {
	if int(delta) == expected {
		return nil
	}

	logger.Error("tracking delta mismatch",
		"expected", expected,
		"actual", int(delta),
	)
	return &AssertionError{
		Code:     failure.CodeTrackingDeltaMismatch,
		Expected: fmt.Sprintf("%d new tracking events", expected),
		Actual:   fmt.Sprintf("%d new tracking events", int(delta)),
	}
}

func preview(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if len(body) <= bodyPreviewLen {
		return body
	}
	return body[:bodyPreviewLen-3] + "..."
}
