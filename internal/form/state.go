package form

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/roach88/formcheck/internal/failure"
)

// Default protocol markers used by the survey form.
const (
	DefaultTokenField    = "csrf_token"
	DefaultSessionCookie = "session"
)

// ProtocolState is the per-page-load state a submission must carry.
// It is owned by the submission that fetched it and never reused.
type ProtocolState struct {
	Token   string
	Session string
}

// Page is a fetched form page: its body and the cookies it set.
type Page struct {
	Body    []byte
	Cookies []*http.Cookie
}

// ReadPage drains resp into a Page. The caller still owns resp.Body.
func ReadPage(resp *http.Response) (Page, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("read form page: %w", err)
	}
	return Page{Body: body, Cookies: resp.Cookies()}, nil
}

// Extractor recovers protocol state from a form page.
type Extractor interface {
	Extract(page Page) (ProtocolState, error)
}

// RegexExtractor finds the token by matching the hidden input markup
// name="<field>" type="hidden" value="...".
type RegexExtractor struct {
	tokenField    string
	sessionCookie string
	pattern       *regexp.Regexp
}

// NewRegexExtractor creates an extractor for the given token field and
// session cookie names. Empty names fall back to the defaults.
func NewRegexExtractor(tokenField, sessionCookie string) *RegexExtractor {
	if tokenField == "" {
		tokenField = DefaultTokenField
	}
	if sessionCookie == "" {
		sessionCookie = DefaultSessionCookie
	}
	return &RegexExtractor{
		tokenField:    tokenField,
		sessionCookie: sessionCookie,
		pattern: regexp.MustCompile(
			`name="` + regexp.QuoteMeta(tokenField) + `" type="hidden" value="([^"]*)"`),
	}
}

// Extract implements Extractor.
func (e *RegexExtractor) Extract(page Page) (ProtocolState, error) {
	match := e.pattern.FindSubmatch(page.Body)
	if match == nil {
		return ProtocolState{}, failure.ProtocolStateNotFound(
			fmt.Sprintf("%s marker not found in form page", e.tokenField))
	}

	session, err := sessionFrom(page.Cookies, e.sessionCookie)
	if err != nil {
		return ProtocolState{}, err
	}

	return ProtocolState{Token: string(match[1]), Session: session}, nil
}

// HTMLExtractor finds the token by parsing the page and locating the hidden
// input by name, independent of attribute order and quoting.
type HTMLExtractor struct {
	tokenField    string
	sessionCookie string
}

// NewHTMLExtractor creates an HTML-parsing extractor. Empty names fall back
// to the defaults.
func NewHTMLExtractor(tokenField, sessionCookie string) *HTMLExtractor {
	if tokenField == "" {
		tokenField = DefaultTokenField
	}
	if sessionCookie == "" {
		sessionCookie = DefaultSessionCookie
	}
	return &HTMLExtractor{tokenField: tokenField, sessionCookie: sessionCookie}
}

// Extract implements Extractor.
func (e *HTMLExtractor) Extract(page Page) (ProtocolState, error) {
	doc, err := html.Parse(bytes.NewReader(page.Body))
	if err != nil {
		return ProtocolState{}, failure.ProtocolStateNotFound(
			fmt.Sprintf("form page is not parseable HTML: %v", err))
	}

	token, ok := findHiddenInput(doc, e.tokenField)
	if !ok {
		return ProtocolState{}, failure.ProtocolStateNotFound(
			fmt.Sprintf("hidden input %q not found in form page", e.tokenField))
	}

	session, err := sessionFrom(page.Cookies, e.sessionCookie)
	if err != nil {
		return ProtocolState{}, err
	}

	return ProtocolState{Token: token, Session: session}, nil
}

// findHiddenInput does a depth-first search for <input type=hidden name=field>.
func findHiddenInput(n *html.Node, field string) (string, bool) {
	if n.Type == html.ElementNode && n.Data == "input" {
		if strings.EqualFold(getAttr(n, "type"), "hidden") && getAttr(n, "name") == field {
			for _, a := range n.Attr {
				if a.Key == "value" {
					return a.Val, true
				}
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if v, ok := findHiddenInput(c, field); ok {
			return v, true
		}
	}
	return "", false
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func sessionFrom(cookies []*http.Cookie, name string) (string, error) {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value, nil
		}
	}
	return "", failure.ProtocolStateNotFound(
		fmt.Sprintf("%s cookie not set by form page", name))
}
