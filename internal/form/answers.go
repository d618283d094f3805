package form

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Slot is the ordinal position of a question on the form.
type Slot int

// Field returns the form field name for the slot (e.g. "question-0").
func (s Slot) Field() string {
	return fmt.Sprintf("question-%d", int(s))
}

// Value is an answer: a single scalar or an ordered list of scalars.
// Scalars are held in their wire form so numbers and strings encode the same
// way the form page renders them.
type Value struct {
	items []string
	list  bool
}

// Scalar creates a single-value answer.
func Scalar(v any) Value {
	return Value{items: []string{fmt.Sprint(v)}}
}

// List creates a multi-value answer. Order is preserved on the wire.
func List(vs ...any) Value {
	items := make([]string, len(vs))
	for i, v := range vs {
		items[i] = fmt.Sprint(v)
	}
	return Value{items: items, list: true}
}

// IsList reports whether the value was created with List.
func (v Value) IsList() bool {
	return v.list
}

// Items returns a copy of the wire values.
func (v Value) Items() []string {
	out := make([]string, len(v.items))
	copy(out, v.items)
	return out
}

// String renders scalars as-is and lists as [a b c].
func (v Value) String() string {
	if !v.list && len(v.items) == 1 {
		return v.items[0]
	}
	return "[" + strings.Join(v.items, " ") + "]"
}

// Answers maps question slots to answers. Absent slots are skipped questions.
type Answers map[Slot]Value

// Clone returns a shallow copy. Values are immutable, so this is a full copy
// for all practical purposes.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Slots returns the answered slots in ascending order.
func (a Answers) Slots() []Slot {
	slots := make([]Slot, 0, len(a))
	for s := range a {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// Encode writes the answers into form values. Skipped slots produce no key.
func (a Answers) Encode(values url.Values) {
	for _, slot := range a.Slots() {
		for _, item := range a[slot].items {
			values.Add(slot.Field(), item)
		}
	}
}

// String renders answers as slot=value pairs in slot order.
func (a Answers) String() string {
	parts := make([]string, 0, len(a))
	for _, slot := range a.Slots() {
		parts = append(parts, fmt.Sprintf("%s=%s", slot.Field(), a[slot]))
	}
	return strings.Join(parts, " ")
}
