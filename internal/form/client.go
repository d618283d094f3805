package form

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/formcheck/internal/failure"
)

// MultiValueCount is the number of fixed values sent in multiple-answers mode.
const MultiValueCount = 3

// Options adjusts a single submission.
type Options struct {
	// MultipleAnswers replaces the multi-select slot with the client's fixed
	// list of distinct values, whatever the caller put in that slot.
	MultipleAnswers bool
}

// Response is the form's reply to a submission, as received.
// The form reports validation errors in the rendered body, so StatusCode is
// recorded but not interpreted.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string

	// Sent is the payload that produced this response, token included.
	Sent url.Values
}

// Config configures a Client.
type Config struct {
	// Endpoint serves the form page (GET) and accepts submissions (POST).
	Endpoint string

	// HTTPClient performs requests. It must not carry a cookie jar; the
	// session cookie is set per request. Defaults to a 30s-timeout client.
	HTTPClient *http.Client

	// Extractor recovers protocol state. Defaults to a RegexExtractor.
	Extractor Extractor

	TokenField    string
	SessionCookie string

	// MultiSelectSlot is the slot overridden in multiple-answers mode.
	MultiSelectSlot Slot

	// MultiValues are the fixed values for multiple-answers mode.
	// Exactly MultiValueCount distinct values are required.
	MultiValues []string

	Logger *slog.Logger
}

// Client submits answer sets to the survey form.
// A Client holds configuration only; no protocol state survives a call.
type Client struct {
	endpoint      string
	http          *http.Client
	extractor     Extractor
	tokenField    string
	sessionCookie string
	multiSlot     Slot
	multiValues   []string
	logger        *slog.Logger
}

// NewClient validates cfg and creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("form endpoint is required")
	}
	if err := validateMultiValues(cfg.MultiValues); err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:      cfg.Endpoint,
		http:          cfg.HTTPClient,
		extractor:     cfg.Extractor,
		tokenField:    cfg.TokenField,
		sessionCookie: cfg.SessionCookie,
		multiSlot:     cfg.MultiSelectSlot,
		multiValues:   append([]string(nil), cfg.MultiValues...),
		logger:        cfg.Logger,
	}
	if c.tokenField == "" {
		c.tokenField = DefaultTokenField
	}
	if c.sessionCookie == "" {
		c.sessionCookie = DefaultSessionCookie
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.extractor == nil {
		c.extractor = NewRegexExtractor(c.tokenField, c.sessionCookie)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

func validateMultiValues(values []string) error {
	if len(values) != MultiValueCount {
		return fmt.Errorf("multiple-answers mode needs exactly %d values, got %d", MultiValueCount, len(values))
	}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return fmt.Errorf("multiple-answers values must be distinct: %q repeated", v)
		}
		seen[v] = true
	}
	return nil
}

// FetchState loads the form page once and extracts its protocol state.
func (c *Client) FetchState(ctx context.Context) (ProtocolState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return ProtocolState{}, fmt.Errorf("build form GET: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("survey GET request failed", "url", c.endpoint, "error", err)
		return ProtocolState{}, failure.Transport("survey GET request failed", err)
	}
	defer resp.Body.Close()

	page, err := ReadPage(resp)
	if err != nil {
		c.logger.Error("survey GET request failed", "url", c.endpoint, "error", err)
		return ProtocolState{}, failure.Transport("survey GET request failed", err)
	}

	state, err := c.extractor.Extract(page)
	if err != nil {
		c.logger.Error("protocol state not found within response",
			"url", c.endpoint,
			"status", resp.StatusCode,
			"error", err,
		)
		return ProtocolState{}, err
	}
	return state, nil
}

// Payload builds the form values for answers under the given protocol state.
// answers is not modified.
func (c *Client) Payload(answers Answers, state ProtocolState, opts Options) url.Values {
	effective := answers.Clone()
	if opts.MultipleAnswers {
		items := make([]any, len(c.multiValues))
		for i, v := range c.multiValues {
			items[i] = v
		}
		effective[c.multiSlot] = List(items...)
	}

	values := url.Values{}
	effective.Encode(values)
	values.Set(c.tokenField, state.Token)
	return values
}

// Submit fetches a fresh form page, then posts answers with that page's
// token and session. Exactly one GET and one POST are issued; nothing is
// retried and the response is returned without interpretation.
func (c *Client) Submit(ctx context.Context, answers Answers, opts Options) (*Response, error) {
	state, err := c.FetchState(ctx)
	if err != nil {
		return nil, err
	}

	payload := c.Payload(answers, state, opts)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build form POST: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", (&http.Cookie{Name: c.sessionCookie, Value: state.Session}).String())

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("survey POST request failed", "url", c.endpoint, "error", err)
		return nil, failure.Transport("survey POST request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("survey POST request failed", "url", c.endpoint, "error", err)
		return nil, failure.Transport("survey POST response unreadable", err)
	}

	c.logger.Debug("survey submitted",
		"answers", answers.String(),
		"multiple_answers", opts.MultipleAnswers,
		"status", resp.StatusCode,
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(body),
		Sent:       payload,
	}, nil
}
