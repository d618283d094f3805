package cli

import (
	"fmt"
	"log/slog"

	"github.com/roach88/formcheck/internal/config"
	"github.com/roach88/formcheck/internal/form"
	"github.com/roach88/formcheck/internal/harness"
	"github.com/roach88/formcheck/internal/tracking"
)

// newExtractor returns the protocol-state extractor named by the config.
func newExtractor(cfg *config.Config) form.Extractor {
	if cfg.Extractor == config.ExtractorHTML {
		return form.NewHTMLExtractor(cfg.TokenField, cfg.SessionCookie)
	}
	return form.NewRegexExtractor(cfg.TokenField, cfg.SessionCookie)
}

func newFormClient(cfg *config.Config, logger *slog.Logger) (*form.Client, error) {
	return form.NewClient(form.Config{
		Endpoint:        cfg.FormURL,
		Extractor:       newExtractor(cfg),
		TokenField:      cfg.TokenField,
		SessionCookie:   cfg.SessionCookie,
		MultiSelectSlot: cfg.Fixtures.MultiSlot(),
		MultiValues:     cfg.Fixtures.MultiValues,
		Logger:          logger,
	})
}

// newHarness wires the form client and tracking reconciler described by cfg.
func newHarness(cfg *config.Config, logger *slog.Logger, waiter tracking.Waiter) (*harness.Harness, error) {
	forms, err := newFormClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("form client: %w", err)
	}

	tracker, err := tracking.NewReconciler(tracking.Config{
		Endpoint: cfg.TrackingURL,
		Username: cfg.Username,
		Password: cfg.Password,
		Waiter:   waiter,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("tracking reconciler: %w", err)
	}

	return harness.New(harness.Options{
		Forms:       forms,
		Tracker:     tracker,
		Fixtures:    cfg.Fixtures,
		Subject:     cfg.SubjectID,
		SettleDelay: cfg.SettleDelay,
		Logger:      logger,
	})
}
