package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/doc-E-brown/statsbox/internal/config"
	"github.com/doc-E-brown/statsbox/internal/ctxlog"
	"github.com/doc-E-brown/statsbox/internal/events"
	"github.com/doc-E-brown/statsbox/internal/registry"
	"github.com/doc-E-brown/statsbox/internal/shell"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	cfg      *Config
	logger   *slog.Logger
	registry *registry.Registry
	model    *config.Model
	bus      *events.Bus
}

// New is the constructor for the main application. It returns a fully
// initialized App, including its own isolated logger and registry.
// Passing no modules installs the built-in runners.
func New(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := config.NewLoader().Load(ctx, cfg.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("loading pipeline configuration: %w", err)
	}
	logger.Debug("Pipeline configuration loaded.",
		"steps", len(model.Steps), "targets", len(model.Targets))

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules(shell.NewLocal())
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All runner modules registered.", "count", len(modules))

	if err := reg.Validate(ctx, model); err != nil {
		return nil, err
	}

	return &App{
		outW:     outW,
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		model:    model,
		bus:      events.NewBus(),
	}, nil
}

// Model returns the loaded pipeline model. This is primarily for
// testing.
func (a *App) Model() *config.Model {
	return a.model
}

// Events returns the application's event bus.
func (a *App) Events() *events.Bus {
	return a.bus
}
