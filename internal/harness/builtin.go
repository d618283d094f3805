package harness

import (
	"github.com/roach88/formcheck/internal/config"
)

// Names of the built-in scenarios.
const (
	ScenarioAllAnswerable      = "all_questions_answerable"
	ScenarioOptionalSkippable  = "unrequired_question_can_be_skipped"
	ScenarioMultipleAnswers    = "multiple_answer_question_accepts_multiple_answers"
	ScenarioRequiredEnforced   = "required_questions_cannot_be_skipped"
	allAnswerableSubmissions   = 24
	defaultEventsPerSubmission = 1
)

// Builtin returns the standard scenarios for the form described by fx.
func Builtin(fx config.Fixtures) []*Scenario {
	per := fx.EventsPerSubmission
	if per <= 0 {
		per = defaultEventsPerSubmission
	}

	return []*Scenario{
		allAnswerable(fx, per),
		optionalSkippable(fx, per),
		multipleAnswers(fx, per),
		requiredEnforced(fx),
	}
}

// allAnswerable cycles through every offered value of every slot, so each
// enum value reaches the backend and the free-text slot takes ordinary
// strings.
func allAnswerable(fx config.Fixtures, per int) *Scenario {
	names := make([]string, len(fx.Slots))
	for i, s := range fx.Slots {
		names[i] = s.Name
	}
	return &Scenario{
		Name:        ScenarioAllAnswerable,
		Description: "Every offered answer of every question is accepted",
		Cycle: &Cycle{
			Slots:      names,
			Count:      allAnswerableSubmissions,
			ExpectText: fx.SuccessText,
		},
		ExpectDelta: intPtr(allAnswerableSubmissions * per),
	}
}

func optionalSkippable(fx config.Fixtures, per int) *Scenario {
	answers := firstValues(fx.Required())
	return &Scenario{
		Name:        ScenarioOptionalSkippable,
		Description: "Questions that are not required can be skipped",
		Submissions: []Submission{
			{Answers: answers, ExpectText: fx.SuccessText},
		},
		ExpectDelta: intPtr(per),
	}
}

func multipleAnswers(fx config.Fixtures, per int) *Scenario {
	multi := fx.MultiSlot()
	var others []config.SlotFixture
	for _, s := range fx.Slots {
		if s.Slot != int(multi) {
			others = append(others, s)
		}
	}
	return &Scenario{
		Name:        ScenarioMultipleAnswers,
		Description: "The multi-select question accepts several answers at once",
		Submissions: []Submission{
			{Answers: firstValues(others), MultipleAnswers: true, ExpectText: fx.SuccessText},
		},
		ExpectDelta: intPtr(per),
	}
}

// requiredEnforced omits each required slot in turn. All omissions share one
// baseline and together must produce no events.
func requiredEnforced(fx config.Fixtures) *Scenario {
	required := fx.Required()
	subs := make([]Submission, 0, len(required))
	for i := range required {
		rest := make([]config.SlotFixture, 0, len(required)-1)
		rest = append(rest, required[:i]...)
		rest = append(rest, required[i+1:]...)
		subs = append(subs, Submission{Answers: firstValues(rest), ExpectText: fx.RequiredText})
	}
	return &Scenario{
		Name:        ScenarioRequiredEnforced,
		Description: "Each required question is rejected when skipped",
		Submissions: subs,
		ExpectDelta: intPtr(0),
	}
}

func firstValues(slots []config.SlotFixture) map[string]interface{} {
	answers := make(map[string]interface{}, len(slots))
	for _, s := range slots {
		answers[s.Name] = s.Values[0]
	}
	return answers
}

func intPtr(v int) *int {
	return &v
}
