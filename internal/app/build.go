package app

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/wirecell/internal/config"
	"github.com/vk/wirecell/internal/declare"
	"github.com/vk/wirecell/internal/registry"
	"github.com/vk/wirecell/internal/require"
	"github.com/vk/wirecell/internal/runner"
	"github.com/vk/wirecell/internal/scope"
)

// buildRunner translates the loaded pipeline model into a runner: each
// manifest step becomes one pipeline step with its handler function, its
// ordering tag and its decoded arguments.
func (a *App) buildRunner(ctx context.Context) (*runner.Runner, error) {
	r := runner.New()
	for _, st := range a.pipeline.Steps {
		h, ok := a.registry.Lookup(st.Handler)
		if !ok {
			return nil, fmt.Errorf("step %q: no handler named %q registered", st.Name, st.Handler)
		}

		opts := []runner.Option{runner.Name(st.Handler + "." + st.Name)}
		switch st.Order {
		case "first":
			opts = append(opts, runner.First())
		case "last":
			opts = append(opts, runner.Last())
		}

		reqs, err := a.stepRequires(ctx, st, h)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", st.Name, err)
		}
		if reqs != nil {
			opts = append(opts, runner.Requires(reqs...))
		}
		if h.Returns != nil {
			opts = append(opts, runner.Returns(h.Returns))
		}
		r.Add(h.Fn, opts...)
	}
	return r, nil
}

// stepRequires assembles the step's requirements. The decoded input struct
// is bound directly to its parameter; every other parameter resolves from
// the shared scope by type.
func (a *App) stepRequires(ctx context.Context, st *config.Step, h *registry.Handler) (declare.Requires, error) {
	if h.Requires != nil {
		return h.Requires, nil
	}
	if h.NewInput == nil {
		return nil, nil
	}

	input := h.NewInput()
	if err := a.decoder.DecodeArguments(ctx, input, st.Arguments); err != nil {
		return nil, err
	}

	t := reflect.TypeOf(h.Fn)
	inputType := reflect.TypeOf(input)
	reqs := make(declare.Requires, 0, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		pt := t.In(i)
		if pt == inputType {
			bound := input
			reqs = append(reqs, require.NewFunc(scope.KeyFor(pt),
				func(context.Context, *scope.Scope) (any, error) { return bound, nil }))
			continue
		}
		reqs = append(reqs, require.New(scope.KeyFor(pt)))
	}
	return reqs, nil
}
