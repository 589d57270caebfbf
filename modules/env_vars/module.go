package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/vk/wirecell/internal/declare"
	"github.com/vk/wirecell/internal/registry"
	"github.com/vk/wirecell/internal/scope"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Environ is the resource produced by the handler: a snapshot of the
// process environment.
type Environ struct {
	All map[string]string
}

// OnRun snapshots the process environment. The result is stored in the
// pipeline scope under the "env" label, so later steps can require it by
// name.
func OnRun(ctx context.Context) (*Environ, error) {
	envMap := make(map[string]string)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			envMap[pair[0]] = pair[1]
		}
	}
	return &Environ{All: envMap}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("env_vars", &registry.Handler{
		NewInput: nil, // no 'arguments' block
		Fn:       OnRun,
		Returns:  declare.To(scope.Label("env")),
	})
}
