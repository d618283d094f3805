// Package form submits answers to the survey form.
//
// Every submission is a GET of the form page followed by one POST. The GET
// yields the protocol state (anti-forgery token and session cookie) that the
// POST must carry; the state is extracted fresh for each submission and never
// cached, so an expired token from an earlier page load cannot leak into a
// later request.
//
// # Extraction
//
// Extraction is behind the Extractor interface:
//
//	type Extractor interface {
//	    Extract(page Page) (ProtocolState, error)
//	}
//
// RegexExtractor matches the exact hidden-field markup the form renders today.
// HTMLExtractor parses the page and tolerates attribute reordering. A missing
// token or session fails with failure.CodeProtocolStateNotFound.
//
// # Payload
//
// Answers are keyed by Slot and encoded as question-<n> form fields. Slots
// missing from the answer set are omitted from the payload entirely, which is
// how the form distinguishes a skipped question from an empty answer. List
// values are sent as repeated keys in order.
package form
