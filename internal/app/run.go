package app

import (
	"context"
	"fmt"
	"io"

	"github.com/vk/wirecell/internal/bridge"
	"github.com/vk/wirecell/internal/ctxlog"
	"github.com/vk/wirecell/internal/scope"
)

// Run builds the pipeline and executes it, on the direct engine or on the
// async bridge depending on configuration.
func (a *App) Run(ctx context.Context, cfg *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	r, err := a.buildRunner(ctx)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	a.logger.Info("Handlers registered:", "count", a.registry.Len(), "names", a.registry.Names())

	if r.Len() == 0 {
		a.logger.Warn("No steps found in pipeline, execution not required.")
		return nil
	}

	s := scope.New()
	s.MustAdd(a.outW, scope.Provides(scope.Type[io.Writer]()))

	a.logger.Info("🚀 Starting pipeline run...", "steps", r.Len(), "async", cfg.Async)
	if cfg.Async {
		sched := bridge.NewScheduler()
		go sched.Run()
		defer sched.Shutdown()
		b := bridge.New(sched, s, cfg.Workers)
		defer b.Close()
		err = r.RunOn(ctx, b)
	} else {
		err = r.RunIn(ctx, s)
	}
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}
	a.logger.Info("🏁 Pipeline finished.")
	return nil
}
