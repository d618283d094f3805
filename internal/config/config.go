// Package config loads harness configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// FORMCHECK_* environment variables. The merged result is checked against an
// embedded CUE schema before use.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/formcheck/internal/form"
)

//go:embed schema.cue
var schemaSrc string

// Extractor strategies.
const (
	ExtractorRegex = "regex"
	ExtractorHTML  = "html"
)

// Config is the harness configuration.
type Config struct {
	FormURL       string        `yaml:"form_url" json:"form_url"`
	TrackingURL   string        `yaml:"tracking_url" json:"tracking_url"`
	Username      string        `yaml:"username" json:"username"`
	Password      string        `yaml:"password" json:"password"`
	SubjectID     string        `yaml:"subject_id" json:"subject_id"`
	SettleDelay   time.Duration `yaml:"settle_delay" json:"settle_delay"`
	TokenField    string        `yaml:"token_field" json:"token_field"`
	SessionCookie string        `yaml:"session_cookie" json:"session_cookie"`
	Extractor     string        `yaml:"extractor" json:"extractor"`

	// LogFile receives error-level records as JSON, in addition to stderr.
	LogFile string `yaml:"log_file" json:"log_file"`

	Fixtures Fixtures `yaml:"fixtures" json:"fixtures"`
}

// envOverrides are the variables that may override the file.
// Empty values leave the file's setting alone.
type envOverrides struct {
	FormURL     string `env:"FORMCHECK_FORM_URL"`
	TrackingURL string `env:"FORMCHECK_TRACKING_URL"`
	Username    string `env:"FORMCHECK_USERNAME"`
	Password    string `env:"FORMCHECK_PASSWORD"`
	SubjectID   string `env:"FORMCHECK_SUBJECT_ID"`
	SettleDelay string `env:"FORMCHECK_SETTLE_DELAY"`
	Extractor   string `env:"FORMCHECK_EXTRACTOR"`
	LogFile     string `env:"FORMCHECK_LOG_FILE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		FormURL:       "https://demo.com",
		TrackingURL:   "https://demo.com",
		Username:      "demo",
		Password:      "demo",
		SubjectID:     "demo",
		SettleDelay:   5 * time.Second,
		TokenField:    form.DefaultTokenField,
		SessionCookie: form.DefaultSessionCookie,
		Extractor:     ExtractorRegex,
		Fixtures:      DefaultFixtures(),
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load with an explicit environment. A nil environ reads the
// process environment.
func LoadWithEnv(path string, environ map[string]string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := overlayEnv(cfg, environ); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

func overlayEnv(cfg *Config, environ map[string]string) error {
	var o envOverrides
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	setIf(&cfg.FormURL, o.FormURL)
	setIf(&cfg.TrackingURL, o.TrackingURL)
	setIf(&cfg.Username, o.Username)
	setIf(&cfg.Password, o.Password)
	setIf(&cfg.SubjectID, o.SubjectID)
	setIf(&cfg.Extractor, o.Extractor)
	setIf(&cfg.LogFile, o.LogFile)

	if o.SettleDelay != "" {
		d, err := time.ParseDuration(o.SettleDelay)
		if err != nil {
			return fmt.Errorf("FORMCHECK_SETTLE_DELAY: %w", err)
		}
		cfg.SettleDelay = d
	}
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks the configuration against the embedded schema and the
// fixture rules the schema cannot express.
func (c *Config) Validate() error {
	if err := validateSchema(c); err != nil {
		return err
	}
	return c.Fixtures.validate()
}

func validateSchema(c *Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.Encode(c)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}
