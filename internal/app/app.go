// Package app wires the core shared by every front end.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"photo-styler/internal/config"
	"photo-styler/internal/gemini"
	"photo-styler/internal/httpclient"
	"photo-styler/internal/session"
	"photo-styler/internal/style"
	"photo-styler/internal/styler"
)

func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// Core holds the long-lived pieces built from one Config.
type Core struct {
	Catalog      style.Catalog
	Generator    gemini.Backend
	Orchestrator *styler.Orchestrator
	Controller   *session.Controller
}

// New builds the catalog, the remote backend and the run machinery. Runs
// are bound to ctx and stop when it is cancelled.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Core, error) {
	catalog, err := style.LoadFile(cfg.StyleCatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load style catalog: %w", err)
	}

	gen, err := NewGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	orch := styler.New(styler.Options{Generator: gen, Logger: logger})
	ctrl := session.NewController(session.Options{
		Runner:      orch,
		Catalog:     catalog,
		Logger:      logger,
		BaseContext: ctx,
	})

	logger.Info("core ready",
		"backend", cfg.GeminiBackend,
		"model", cfg.GeminiImageModel,
		"styles", catalog.Styles(),
	)

	return &Core{
		Catalog:      catalog,
		Generator:    gen,
		Orchestrator: orch,
		Controller:   ctrl,
	}, nil
}

func NewGenerator(ctx context.Context, cfg config.Config, logger *slog.Logger) (gemini.Backend, error) {
	httpClient := httpclient.New(HTTPOptions(cfg, logger))

	gen, err := gemini.NewBackend(ctx, cfg.GeminiBackend, gemini.Options{
		APIKey:         cfg.GeminiAPIKey,
		BaseURL:        cfg.GeminiBaseURL,
		APIVersion:     cfg.GeminiAPIVersion,
		Model:          cfg.GeminiImageModel,
		HTTPClient:     httpClient,
		Logger:         logger,
		MinInterval:    cfg.GeminiMinInterval,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini backend: %w", err)
	}
	return gen, nil
}

// HTTPOptions tunes outbound clients; request lines are logged only with DEBUG.
func HTTPOptions(cfg config.Config, logger *slog.Logger) httpclient.Options {
	opts := httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	}
	if cfg.Debug {
		opts.Logger = logger
	}
	return opts
}
