package config

import (
	"fmt"

	"github.com/roach88/formcheck/internal/form"
)

// SlotFixture describes one question on the form.
type SlotFixture struct {
	Name     string `yaml:"name" json:"name"`
	Slot     int    `yaml:"slot" json:"slot"`
	Required bool   `yaml:"required" json:"required"`
	Multi    bool   `yaml:"multi" json:"multi"`

	// Values are the answers the form offers, in display order.
	Values []any `yaml:"values" json:"values"`
}

// Fixtures are the form's business rules as the harness sees them.
// They are supplied, not computed.
type Fixtures struct {
	SuccessText  string        `yaml:"success_text" json:"success_text"`
	RequiredText string        `yaml:"required_text" json:"required_text"`
	MultiValues  []string      `yaml:"multi_values" json:"multi_values"`
	Slots        []SlotFixture `yaml:"slots" json:"slots"`

	// EventsPerSubmission is how many tracking events one accepted
	// submission produces.
	EventsPerSubmission int `yaml:"events_per_submission" json:"events_per_submission"`
}

// DefaultFixtures returns the survey as currently deployed.
func DefaultFixtures() Fixtures {
	return Fixtures{
		SuccessText:         "Your survey was successfully submitted",
		RequiredText:        "This field is required",
		MultiValues:         []string{"Punk", "Techno", "Classical"},
		EventsPerSubmission: 1,
		Slots: []SlotFixture{
			{Name: "color", Slot: 0, Required: true,
				Values: []any{"Blue", "Green", "Yellow", "Red"}},
			{Name: "genre", Slot: 1, Required: true, Multi: true,
				Values: []any{"Pop", "Rock", "Classical", "Jazz", "Punk", "Techno"}},
			{Name: "rating", Slot: 2, Required: true,
				Values: []any{1, 2, 3, 4, 5}},
			{Name: "movie", Slot: 3,
				Values: []any{"Shrek", "Shrek_2", "Shrek_3", "Shrek_4", "Shrek_5", "Shrek_6"}},
		},
	}
}

// Lookup returns the slot fixture with the given name.
func (f Fixtures) Lookup(name string) (SlotFixture, bool) {
	for _, s := range f.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return SlotFixture{}, false
}

// MultiSlot returns the multi-select slot.
func (f Fixtures) MultiSlot() form.Slot {
	for _, s := range f.Slots {
		if s.Multi {
			return form.Slot(s.Slot)
		}
	}
	return 0
}

// Required returns the required slot fixtures in declaration order.
func (f Fixtures) Required() []SlotFixture {
	var out []SlotFixture
	for _, s := range f.Slots {
		if s.Required {
			out = append(out, s)
		}
	}
	return out
}

// Optional returns the non-required slot fixtures in declaration order.
func (f Fixtures) Optional() []SlotFixture {
	var out []SlotFixture
	for _, s := range f.Slots {
		if !s.Required {
			out = append(out, s)
		}
	}
	return out
}

func (f Fixtures) validate() error {
	names := make(map[string]bool)
	slots := make(map[int]bool)
	multi := 0
	for _, s := range f.Slots {
		if names[s.Name] {
			return fmt.Errorf("fixtures: slot name %q declared twice", s.Name)
		}
		if slots[s.Slot] {
			return fmt.Errorf("fixtures: slot %d declared twice", s.Slot)
		}
		names[s.Name] = true
		slots[s.Slot] = true
		if s.Multi {
			multi++
		}
	}
	if multi != 1 {
		return fmt.Errorf("fixtures: exactly one multi-select slot required, got %d", multi)
	}

	seen := make(map[string]bool)
	for _, v := range f.MultiValues {
		if seen[v] {
			return fmt.Errorf("fixtures: multi_values must be distinct: %q repeated", v)
		}
		seen[v] = true
	}
	return nil
}
