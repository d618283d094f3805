package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/formcheck/internal/config"
	"github.com/roach88/formcheck/internal/form"
)

// Scenario defines one verified behavior of the form.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Submissions are sent in order.
	Submissions []Submission `yaml:"submissions,omitempty"`

	// Cycle generates further submissions after the explicit ones.
	Cycle *Cycle `yaml:"cycle,omitempty"`

	// ExpectDelta is the exact number of tracking events the whole scenario
	// must produce. Required; zero is a valid expectation.
	ExpectDelta *int `yaml:"expect_delta"`

	// SettleDelay overrides the configured settle delay for this scenario.
	SettleDelay *time.Duration `yaml:"settle_delay,omitempty"`
}

// Submission is one answer set and the text its response must contain.
type Submission struct {
	// Answers maps slot names to a scalar or a list of scalars.
	Answers map[string]interface{} `yaml:"answers"`

	// MultipleAnswers sends the fixed multi-select values instead of
	// whatever Answers holds for the multi-select slot.
	MultipleAnswers bool `yaml:"multiple_answers,omitempty"`

	// ExpectText must appear in the response body.
	ExpectText string `yaml:"expect_text"`
}

// Cycle generates submissions by walking the fixture values of each slot.
type Cycle struct {
	Slots      []string `yaml:"slots"`
	Count      int      `yaml:"count,omitempty"`
	ExpectText string   `yaml:"expect_text"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "submission:" vs "submissions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Submissions) == 0 && s.Cycle == nil {
		return fmt.Errorf("submissions or cycle is required")
	}

	if s.ExpectDelta == nil {
		return fmt.Errorf("expect_delta is required")
	}
	if *s.ExpectDelta < 0 {
		return fmt.Errorf("expect_delta must be non-negative")
	}

	if s.SettleDelay != nil && *s.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must be non-negative")
	}

	for i, sub := range s.Submissions {
		if sub.Answers == nil {
			return fmt.Errorf("submissions[%d]: answers is required (use empty map to skip every question)", i)
		}
		if sub.ExpectText == "" {
			return fmt.Errorf("submissions[%d]: expect_text is required", i)
		}
	}

	if c := s.Cycle; c != nil {
		if len(c.Slots) == 0 {
			return fmt.Errorf("cycle: slots list is required and must be non-empty")
		}
		if c.Count < 0 {
			return fmt.Errorf("cycle: count must be non-negative")
		}
		if c.ExpectText == "" {
			return fmt.Errorf("cycle: expect_text is required")
		}
	}

	return nil
}

// Expand returns the scenario's submissions, with the cycle generated
// against fx. Slot names are checked against fx.
func (s *Scenario) Expand(fx config.Fixtures) ([]Submission, error) {
	out := make([]Submission, 0, len(s.Submissions))
	for i, sub := range s.Submissions {
		for name := range sub.Answers {
			if _, ok := fx.Lookup(name); !ok {
				return nil, fmt.Errorf("submissions[%d]: unknown slot %q", i, name)
			}
		}
		out = append(out, sub)
	}

	if s.Cycle == nil {
		return out, nil
	}

	slots := make([]config.SlotFixture, len(s.Cycle.Slots))
	longest := 0
	for i, name := range s.Cycle.Slots {
		slot, ok := fx.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("cycle: unknown slot %q", name)
		}
		slots[i] = slot
		if len(slot.Values) > longest {
			longest = len(slot.Values)
		}
	}

	count := s.Cycle.Count
	if count == 0 {
		count = longest
	}

	for i := 0; i < count; i++ {
		answers := make(map[string]interface{}, len(slots))
		for _, slot := range slots {
			answers[slot.Name] = slot.Values[i%len(slot.Values)]
		}
		out = append(out, Submission{Answers: answers, ExpectText: s.Cycle.ExpectText})
	}
	return out, nil
}

// FormAnswers converts the submission's named answers into form slots.
func (sub Submission) FormAnswers(fx config.Fixtures) (form.Answers, error) {
	answers := make(form.Answers, len(sub.Answers))
	for name, raw := range sub.Answers {
		slot, ok := fx.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown slot %q", name)
		}
		value, err := toValue(raw)
		if err != nil {
			return nil, fmt.Errorf("slot %q: %w", name, err)
		}
		answers[form.Slot(slot.Slot)] = value
	}
	return answers, nil
}

// toValue converts a YAML-parsed answer into a form value.
// Null is rejected: a skipped question is expressed by leaving the slot out.
func toValue(raw interface{}) (form.Value, error) {
	switch v := raw.(type) {
	case nil:
		return form.Value{}, fmt.Errorf("null answers are not allowed; omit the slot to skip it")
	case string, int, int64, bool:
		return form.Scalar(v), nil
	case float64:
		if v == float64(int64(v)) {
			return form.Scalar(int64(v)), nil
		}
		return form.Scalar(v), nil
	case []interface{}:
		items := make([]any, len(v))
		for i, elem := range v {
			switch elem.(type) {
			case nil, []interface{}, map[string]interface{}:
				return form.Value{}, fmt.Errorf("list[%d]: answers must be scalars", i)
			}
			items[i] = elem
		}
		return form.List(items...), nil
	default:
		return form.Value{}, fmt.Errorf("unsupported answer type %T", raw)
	}
}
