package testutil

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Texts rendered by FakeSurvey.
const (
	SuccessText      = "Your survey was successfully submitted"
	RequiredText     = "This field is required."
	InvalidTokenText = "The CSRF token is missing or invalid."
)

// SurveyOptions configures a FakeSurvey.
type SurveyOptions struct {
	// Required lists the form fields that must be present.
	// Defaults to question-0, question-1 and question-2.
	Required []string

	// Tracking receives EventsPerSubmission events per accepted submission.
	Tracking            *FakeTracking
	Subject             string
	EventsPerSubmission int

	// PageTemplate renders the form page; %s is replaced by the token.
	// Defaults to the survey's own markup.
	PageTemplate string

	// OmitSessionCookie stops the page from setting the session cookie.
	OmitSessionCookie bool
}

// SurveyPost records one POST to the fake.
type SurveyPost struct {
	Form     url.Values
	Session  string
	Accepted bool
}

// FakeSurvey is an in-process survey form.
//
// Every GET issues a new token bound to a new session. A POST is accepted
// only if its token was issued for its session and has not been used
// before; required fields are then checked and reported in the body with a
// 200 status, mirroring how the real form renders validation errors.
type FakeSurvey struct {
	Server *httptest.Server

	opts   SurveyOptions
	tokens *Sequence

	mu     sync.Mutex
	issued map[string]string // session -> token
	used   map[string]bool
	gets   int
	posts  []SurveyPost
}

const defaultPageTemplate = `<!DOCTYPE html>
<html><body>
<form method="post">
<input id="csrf_token" name="csrf_token" type="hidden" value="%s">
<select name="question-0"></select>
<input name="question-3" type="text">
<button type="submit">Submit</button>
</form>
</body></html>`

// NewFakeSurvey starts a survey fake. The server is closed when the test finishes.
func NewFakeSurvey(t *testing.T, opts SurveyOptions) *FakeSurvey {
	t.Helper()
	if opts.Required == nil {
		opts.Required = []string{"question-0", "question-1", "question-2"}
	}
	if opts.EventsPerSubmission == 0 {
		opts.EventsPerSubmission = 1
	}
	if opts.PageTemplate == "" {
		opts.PageTemplate = defaultPageTemplate
	}
	f := &FakeSurvey{
		opts:   opts,
		tokens: NewSequence(),
		issued: make(map[string]string),
		used:   make(map[string]bool),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the form endpoint.
func (f *FakeSurvey) URL() string {
	return f.Server.URL
}

// Gets returns the number of form page loads.
func (f *FakeSurvey) Gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

// Posts returns the submissions received so far.
func (f *FakeSurvey) Posts() []SurveyPost {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SurveyPost(nil), f.posts...)
}

// Accepted returns the number of accepted submissions.
func (f *FakeSurvey) Accepted() int {
	n := 0
	for _, p := range f.Posts() {
		if p.Accepted {
			n++
		}
	}
	return n
}

func (f *FakeSurvey) handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		f.serveForm(w)
	case http.MethodPost:
		f.acceptSubmission(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (f *FakeSurvey) serveForm(w http.ResponseWriter) {
	n := f.tokens.Next()
	token := fmt.Sprintf("csrf-%04d", n)
	session := fmt.Sprintf("sess-%04d", n)

	f.mu.Lock()
	f.gets++
	f.issued[session] = token
	f.mu.Unlock()

	if !f.opts.OmitSessionCookie {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: session, Path: "/", HttpOnly: true})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, f.opts.PageTemplate, html.EscapeString(token))
}

func (f *FakeSurvey) acceptSubmission(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var session string
	if c, err := r.Cookie("session"); err == nil {
		session = c.Value
	}
	token := r.PostForm.Get("csrf_token")

	f.mu.Lock()
	post := SurveyPost{Form: r.PostForm, Session: session}
	valid := session != "" && f.issued[session] == token && !f.used[token]
	if valid {
		f.used[token] = true
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if !valid {
		f.record(post)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "<html><body><p class=\"error\">%s</p></body></html>", InvalidTokenText)
		return
	}

	for _, field := range f.opts.Required {
		if len(r.PostForm[field]) == 0 {
			f.record(post)
			fmt.Fprintf(w, "<html><body><div class=\"question-wrapper\" data-field=%q><span class=\"error\">%s</span></div></body></html>",
				field, RequiredText)
			return
		}
	}

	post.Accepted = true
	f.record(post)
	if f.opts.Tracking != nil {
		f.opts.Tracking.AddEvents(f.opts.Subject, f.opts.EventsPerSubmission)
	}
	fmt.Fprintf(w, "<html><body><h1>%s</h1></body></html>", SuccessText)
}

func (f *FakeSurvey) record(p SurveyPost) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, p)
}
