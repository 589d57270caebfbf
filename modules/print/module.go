package print

import (
	"context"
	"fmt"
	"io"

	"github.com/vk/wirecell/internal/ctxlog"
	"github.com/vk/wirecell/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the print handler.
type Input struct {
	Message string `wire:"message"`
}

// OnRun writes the configured message. The output writer is resolved from
// the pipeline scope, so tests and the app can redirect it.
func OnRun(ctx context.Context, out io.Writer, input *Input) error {
	ctxlog.FromContext(ctx).Info("Printing message.")
	_, err := fmt.Fprintln(out, input.Message)
	return err
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("print", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       OnRun,
	})
}
