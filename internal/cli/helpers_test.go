package cli

import (
	"bytes"
	"testing"

	"github.com/roach88/formcheck/internal/testutil"
)

// testEnv is a survey and tracking fake pair with CLI options pointing at them.
type testEnv struct {
	survey   *testutil.FakeSurvey
	tracking *testutil.FakeTracking
	waiter   *testutil.RecordingWaiter
	opts     *RootOptions
}

func newTestEnv(t *testing.T, surveyOpts testutil.SurveyOptions) *testEnv {
	t.Helper()

	tr := testutil.NewFakeTracking(t, "demo", "secret")
	tr.SetCount("demo", 100)
	tr.SetDelayed(true)

	surveyOpts.Tracking = tr
	surveyOpts.Subject = "demo"
	survey := testutil.NewFakeSurvey(t, surveyOpts)

	waiter := &testutil.RecordingWaiter{OnWait: tr.Settle}
	return &testEnv{
		survey:   survey,
		tracking: tr,
		waiter:   waiter,
		opts: &RootOptions{
			Environ: map[string]string{
				"FORMCHECK_FORM_URL":     survey.URL(),
				"FORMCHECK_TRACKING_URL": tr.URL(),
				"FORMCHECK_USERNAME":     "demo",
				"FORMCHECK_PASSWORD":     "secret",
				"FORMCHECK_SUBJECT_ID":   "demo",
			},
			Waiter: waiter,
		},
	}
}

// execute runs the root command with args and returns stdout, stderr and the error.
func execute(t *testing.T, opts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	cmd := newRootCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
