package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formcheck/internal/config"
	"github.com/roach88/formcheck/internal/form"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: unrequired_question_can_be_skipped
description: Movie slot may be omitted
expect_delta: 1
settle_delay: 2s
submissions:
  - answers: {color: Blue, genre: Pop, rating: 1}
    expect_text: "Your survey was successfully submitted"
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "unrequired_question_can_be_skipped", scenario.Name)
	require.NotNil(t, scenario.ExpectDelta)
	assert.Equal(t, 1, *scenario.ExpectDelta)
	require.NotNil(t, scenario.SettleDelay)
	assert.Equal(t, "2s", scenario.SettleDelay.String())
	require.Len(t, scenario.Submissions, 1)
	assert.Equal(t, "Blue", scenario.Submissions[0].Answers["color"])
	assert.Equal(t, 1, scenario.Submissions[0].Answers["rating"])
}

func TestLoadScenario_ZeroDeltaIsValid(t *testing.T) {
	path := writeScenario(t, `
name: skip_all
description: empty submission is rejected
expect_delta: 0
submissions:
  - answers: {}
    expect_text: "This field is required"
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, 0, *scenario.ExpectDelta)
	assert.Empty(t, scenario.Submissions[0].Answers)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: y\nexpect_delta: 0\nsubmission: []\n",
			wantErr: "field submission not found",
		},
		{
			name:    "missing name",
			content: "description: y\nexpect_delta: 0\nsubmissions: [{answers: {}, expect_text: t}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\nexpect_delta: 0\nsubmissions: [{answers: {}, expect_text: t}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no submissions",
			content: "name: x\ndescription: y\nexpect_delta: 0\n",
			wantErr: "submissions or cycle is required",
		},
		{
			name:    "missing expect_delta",
			content: "name: x\ndescription: y\nsubmissions: [{answers: {}, expect_text: t}]\n",
			wantErr: "expect_delta is required",
		},
		{
			name:    "negative expect_delta",
			content: "name: x\ndescription: y\nexpect_delta: -1\nsubmissions: [{answers: {}, expect_text: t}]\n",
			wantErr: "expect_delta must be non-negative",
		},
		{
			name:    "missing answers",
			content: "name: x\ndescription: y\nexpect_delta: 0\nsubmissions: [{expect_text: t}]\n",
			wantErr: "submissions[0]: answers is required",
		},
		{
			name:    "missing expect_text",
			content: "name: x\ndescription: y\nexpect_delta: 0\nsubmissions: [{answers: {}}]\n",
			wantErr: "submissions[0]: expect_text is required",
		},
		{
			name:    "empty cycle",
			content: "name: x\ndescription: y\nexpect_delta: 0\ncycle: {slots: [], expect_text: t}\n",
			wantErr: "cycle: slots list is required",
		},
		{
			name:    "cycle without expect_text",
			content: "name: x\ndescription: y\nexpect_delta: 0\ncycle: {slots: [color]}\n",
			wantErr: "cycle: expect_text is required",
		},
		{
			name:    "malformed yaml",
			content: "name: [unterminated\n",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestExpand_CycleWrapsShorterSlots(t *testing.T) {
	fx := config.DefaultFixtures()
	scenario := &Scenario{
		Name:        "cycle",
		Description: "d",
		Cycle:       &Cycle{Slots: []string{"color", "genre"}, ExpectText: "ok"},
		ExpectDelta: intPtr(6),
	}

	subs, err := scenario.Expand(fx)
	require.NoError(t, err)

	// Longest slot has six values.
	require.Len(t, subs, 6)
	assert.Equal(t, "Blue", subs[0].Answers["color"])
	assert.Equal(t, "Pop", subs[0].Answers["genre"])
	assert.Equal(t, "Blue", subs[4].Answers["color"])
	assert.Equal(t, "Punk", subs[4].Answers["genre"])
	for _, s := range subs {
		assert.Equal(t, "ok", s.ExpectText)
	}
}

func TestExpand_ExplicitCountAndSubmissionsFirst(t *testing.T) {
	fx := config.DefaultFixtures()
	scenario := &Scenario{
		Name:        "mixed",
		Description: "d",
		Submissions: []Submission{{Answers: map[string]interface{}{"color": "Red"}, ExpectText: "first"}},
		Cycle:       &Cycle{Slots: []string{"rating"}, Count: 24, ExpectText: "ok"},
		ExpectDelta: intPtr(25),
	}

	subs, err := scenario.Expand(fx)
	require.NoError(t, err)

	require.Len(t, subs, 25)
	assert.Equal(t, "first", subs[0].ExpectText)
	assert.Equal(t, 1, subs[1].Answers["rating"])
	assert.Equal(t, 5, subs[5].Answers["rating"])
	assert.Equal(t, 1, subs[6].Answers["rating"])
}

func TestExpand_UnknownCycleSlot(t *testing.T) {
	scenario := &Scenario{Cycle: &Cycle{Slots: []string{"shoe_size"}, ExpectText: "ok"}}
	_, err := scenario.Expand(config.DefaultFixtures())
	assert.ErrorContains(t, err, `cycle: unknown slot "shoe_size"`)
}

func TestFormAnswers(t *testing.T) {
	fx := config.DefaultFixtures()
	sub := Submission{Answers: map[string]interface{}{
		"color":  "Blue",
		"genre":  []interface{}{"Pop", "Rock"},
		"rating": float64(4),
	}}

	answers, err := sub.FormAnswers(fx)
	require.NoError(t, err)

	assert.Equal(t, []form.Slot{0, 1, 2}, answers.Slots())
	assert.Equal(t, []string{"Blue"}, answers[0].Items())
	assert.True(t, answers[1].IsList())
	assert.Equal(t, []string{"Pop", "Rock"}, answers[1].Items())
	assert.Equal(t, []string{"4"}, answers[2].Items())
}

func TestFormAnswers_Rejects(t *testing.T) {
	fx := config.DefaultFixtures()
	tests := []struct {
		name    string
		answers map[string]interface{}
		wantErr string
	}{
		{"null", map[string]interface{}{"movie": nil}, "null answers are not allowed"},
		{"nested list", map[string]interface{}{"genre": []interface{}{[]interface{}{"Pop"}}}, "answers must be scalars"},
		{"map", map[string]interface{}{"color": map[string]interface{}{"a": 1}}, "unsupported answer type"},
		{"unknown", map[string]interface{}{"colour": "Blue"}, `unknown slot "colour"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Submission{Answers: tt.answers}.FormAnswers(fx)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBuiltin(t *testing.T) {
	fx := config.DefaultFixtures()
	scenarios := Builtin(fx)
	require.Len(t, scenarios, 4)

	byName := map[string]*Scenario{}
	for _, s := range scenarios {
		require.NoError(t, validateScenario(s), s.Name)
		byName[s.Name] = s
	}

	all := byName[ScenarioAllAnswerable]
	subs, err := all.Expand(fx)
	require.NoError(t, err)
	assert.Len(t, subs, 24)
	assert.Equal(t, 24, *all.ExpectDelta)

	assert.Equal(t, 1, *byName[ScenarioOptionalSkippable].ExpectDelta)
	assert.NotContains(t, byName[ScenarioOptionalSkippable].Submissions[0].Answers, "movie")

	multi := byName[ScenarioMultipleAnswers]
	assert.True(t, multi.Submissions[0].MultipleAnswers)
	assert.Equal(t, 1, *multi.ExpectDelta)

	required := byName[ScenarioRequiredEnforced]
	assert.Len(t, required.Submissions, 3)
	assert.Equal(t, 0, *required.ExpectDelta)
	for _, s := range required.Submissions {
		assert.Len(t, s.Answers, 2)
		assert.Equal(t, fx.RequiredText, s.ExpectText)
	}
}

func TestBuiltin_ScalesWithEventsPerSubmission(t *testing.T) {
	fx := config.DefaultFixtures()
	fx.EventsPerSubmission = 4

	for _, s := range Builtin(fx) {
		switch s.Name {
		case ScenarioAllAnswerable:
			assert.Equal(t, 96, *s.ExpectDelta)
		case ScenarioRequiredEnforced:
			assert.Equal(t, 0, *s.ExpectDelta)
		default:
			assert.Equal(t, 4, *s.ExpectDelta)
		}
	}
}
