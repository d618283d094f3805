// Package harness runs survey submission scenarios and reconciles them
// against the tracking service.
//
// Each scenario captures a baseline event count, submits one or more answer
// sets, checks every response body, waits a settle delay and then checks
// that the event count moved by exactly the expected delta.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: unrequired_question_can_be_skipped
//	description: "The movie question may be left out"
//	expect_delta: 1
//	submissions:
//	  - answers: { color: Blue, genre: Pop, rating: 1 }
//	    expect_text: "Your survey was successfully submitted"
//	  - answers: { color: Red, rating: 5 }
//	    multiple_answers: true
//	    expect_text: "Your survey was successfully submitted"
//	cycle:
//	  slots: [color, genre, rating, movie]
//	  count: 24
//	  expect_text: "Your survey was successfully submitted"
//
// Answer keys are slot names from the configured fixtures. A value may be a
// scalar or a list. Slots left out of answers are not sent at all.
//
// cycle generates count submissions; submission i answers each listed slot
// with values[i % len(values)]. When count is omitted it defaults to the
// longest value list.
//
// # Run States
//
// A run moves through
//
//	idle → baseline_captured → submitting → settling → reconciled → passed
//
// and stops in failed on the first error. Nothing is retried; the first
// failing response or delta ends the scenario.
//
// # Baselines
//
// The baseline is an explicit tracking.Snapshot carried through the run.
// Run captures a fresh one; RunFrom accepts one from the caller so several
// batches can be measured against a shared starting point.
package harness
