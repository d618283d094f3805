package failure

import (
	"errors"
	"fmt"
)

// Error represents a failure raised while verifying a submission.
//
// Failures include:
//   - Transport: the form or tracking endpoint could not be reached
//   - Protocol state: the form page no longer carries a token or session
//   - Tracking query: the tracking endpoint answered with something unusable
//   - Assertions: the response text or the event delta did not match
//
// Assertion failures carry Expected and Actual so the mismatch can be
// reported without re-running the scenario.
type Error struct {
	// Code identifies the failure category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Expected and Actual describe an assertion mismatch.
	Expected string
	Actual   string

	// Err is the underlying cause, if any.
	Err error
}

// Code categorizes failures.
type Code string

const (
	// CodeTransportFailure indicates a network-level failure on either endpoint.
	CodeTransportFailure Code = "TRANSPORT_FAILURE"

	// CodeProtocolStateNotFound indicates the anti-forgery token or session
	// cookie is missing from the form page.
	CodeProtocolStateNotFound Code = "PROTOCOL_STATE_NOT_FOUND"

	// CodeTrackingQueryFailed indicates the tracking response was rejected or malformed.
	CodeTrackingQueryFailed Code = "TRACKING_QUERY_FAILED"

	// CodeTrackingNonMonotonic indicates the event count went down between snapshots.
	CodeTrackingNonMonotonic Code = "TRACKING_NON_MONOTONIC"

	// CodeUnexpectedResponseContent indicates the response body lacked the expected text.
	CodeUnexpectedResponseContent Code = "UNEXPECTED_RESPONSE_CONTENT"

	// CodeTrackingDeltaMismatch indicates the event delta differs from the expectation.
	CodeTrackingDeltaMismatch Code = "TRACKING_DELTA_MISMATCH"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Expected != "" || e.Actual != "" {
		msg = fmt.Sprintf("%s (expected %s, actual %s)", msg, e.Expected, e.Actual)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// FailureCode reports the failure category.
func (e *Error) FailureCode() Code {
	return e.Code
}

// Coded is implemented by every error that carries a failure code.
type Coded interface {
	error
	FailureCode() Code
}

// CodeOf returns the failure code of err, or "" if err carries none.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) Code {
	var c Coded
	if errors.As(err, &c) {
		return c.FailureCode()
	}
	return ""
}

// Is returns true if err carries the given failure code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Transport creates a failure for a network-level error.
func Transport(message string, err error) *Error {
	return &Error{Code: CodeTransportFailure, Message: message, Err: err}
}

// ProtocolStateNotFound creates a failure for a missing token or session.
func ProtocolStateNotFound(message string) *Error {
	return &Error{Code: CodeProtocolStateNotFound, Message: message}
}

// TrackingQuery creates a failure for an unusable tracking response.
func TrackingQuery(message string, err error) *Error {
	return &Error{Code: CodeTrackingQueryFailed, Message: message, Err: err}
}

// NonMonotonic creates a failure for an event count that decreased.
func NonMonotonic(subject string, before, after int) *Error {
	return &Error{
		Code:     CodeTrackingNonMonotonic,
		Message:  fmt.Sprintf("event count for %q decreased", subject),
		Expected: fmt.Sprintf(">= %d events", before),
		Actual:   fmt.Sprintf("%d events", after),
	}
}
