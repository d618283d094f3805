package harness

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/formcheck/internal/config"
	"github.com/roach88/formcheck/internal/form"
	"github.com/roach88/formcheck/internal/testutil"
	"github.com/roach88/formcheck/internal/tracking"
)

const (
	testSubject  = "demo"
	testBaseline = 100
)

// rig wires a Harness to in-process survey and tracking fakes.
type rig struct {
	survey   *testutil.FakeSurvey
	tracking *testutil.FakeTracking
	waiter   *testutil.RecordingWaiter
	fixtures config.Fixtures
	harness  *Harness
}

type rigOptions struct {
	// eventsPerSubmission is what the fake survey actually emits.
	eventsPerSubmission int
	surveyOptions       testutil.SurveyOptions
}

func newRig(t *testing.T, opts rigOptions) *rig {
	t.Helper()

	tr := testutil.NewFakeTracking(t, "demo", "secret")
	tr.SetCount(testSubject, testBaseline)
	tr.SetDelayed(true)

	surveyOpts := opts.surveyOptions
	surveyOpts.Tracking = tr
	surveyOpts.Subject = testSubject
	surveyOpts.EventsPerSubmission = opts.eventsPerSubmission
	survey := testutil.NewFakeSurvey(t, surveyOpts)

	waiter := &testutil.RecordingWaiter{OnWait: tr.Settle}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fx := config.DefaultFixtures()

	forms, err := form.NewClient(form.Config{
		Endpoint:        survey.URL(),
		MultiSelectSlot: fx.MultiSlot(),
		MultiValues:     fx.MultiValues,
		Logger:          logger,
	})
	require.NoError(t, err)

	tracker, err := tracking.NewReconciler(tracking.Config{
		Endpoint: tr.URL(),
		Username: "demo",
		Password: "secret",
		Waiter:   waiter,
		Logger:   logger,
	})
	require.NoError(t, err)

	h, err := New(Options{
		Forms:       forms,
		Tracker:     tracker,
		Fixtures:    fx,
		Subject:     testSubject,
		SettleDelay: 5 * time.Second,
		Logger:      logger,
	})
	require.NoError(t, err)

	return &rig{survey: survey, tracking: tr, waiter: waiter, fixtures: fx, harness: h}
}

func builtinByName(t *testing.T, fx config.Fixtures, name string) *Scenario {
	t.Helper()
	for _, s := range Builtin(fx) {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no builtin scenario %q", name)
	return nil
}
