package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Twixes/mcpolice/internal/kv"
	"github.com/Twixes/mcpolice/internal/llm"
	"github.com/Twixes/mcpolice/internal/metrics"
	"github.com/Twixes/mcpolice/internal/model"
	"github.com/Twixes/mcpolice/internal/statute"
	"github.com/Twixes/mcpolice/internal/store"
	"github.com/Twixes/mcpolice/internal/violation"
	"github.com/spf13/viper"
)

// app holds the wired components shared by the commands
type app struct {
	cfg     *model.Config
	logger  *slog.Logger
	backend kv.Store
	metrics *metrics.Registry
	service *violation.Service
}

// setup loads the configuration and wires the service
func setup(ctx context.Context) (*app, error) {
	cfg, logger, err := configure()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logger)
}

// configure loads the configuration and installs the default logger
func configure() (*model.Config, *slog.Logger, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// loadRegistry returns the configured statute table, or the built-in one
func loadRegistry(cfg *model.Config, logger *slog.Logger) (*statute.Registry, error) {
	if cfg.Statutes.File == "" {
		return statute.Default(), nil
	}

	registry, err := statute.LoadFile(cfg.Statutes.File)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded statute table", "file", cfg.Statutes.File, "statutes", registry.Len())
	return registry, nil
}

// newApp opens the backend and builds the violation service on top of it
func newApp(ctx context.Context, cfg *model.Config, logger *slog.Logger) (*app, error) {
	registry, err := loadRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	backend, err := kv.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	logger.Debug("Opened store", "backend", cfg.Store.Backend)

	reg := metrics.NewRegistry()
	violations := store.New(backend,
		store.WithLogger(logger),
		store.WithFetchConcurrency(cfg.Store.FetchConcurrency))

	svc := violation.NewService(registry, violations,
		violation.WithLogger(logger),
		violation.WithObserver(reg),
		violation.WithProtocolVersion(cfg.Protocol.Version))

	return &app{
		cfg:     cfg,
		logger:  logger,
		backend: backend,
		metrics: reg,
		service: svc,
	}, nil
}

// digester returns the configured LLM digester, or nil when disabled
func (a *app) digester() (*llm.Digester, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(a.cfg.LLM))
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}
	return llm.NewDigester(provider, a.cfg.LLM.MaxTokens), nil
}

// Close releases the backend
func (a *app) Close() {
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("Failed to close store", "error", err)
	}
}
