// Package app wires the manifest loader, the handler registry and the
// resolution engine into a runnable application.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/wirecell/internal/config"
	"github.com/vk/wirecell/internal/ctxlog"
	"github.com/vk/wirecell/internal/registry"
)

// App encapsulates the application's dependencies, configuration and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	pipeline *config.Pipeline
	decoder  config.Decoder
}

// New constructs a fully initialized App with its own isolated logger and
// registry. A failure to load the manifest or an inconsistent registry is a
// fatal startup error and panics; the CLI entrypoint recovers.
func New(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	pipeline, decoder, err := loader.Load(ctx, cfg.PipelinePath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Manifest loaded into unified model.", "steps", len(pipeline.Steps))

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	if err := reg.Validate(ctx); err != nil {
		// A mismatch between code and registration is a programmer error.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		pipeline: pipeline,
		decoder:  decoder,
	}
}

// Registry returns the application's registry. This is primarily for
// testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
