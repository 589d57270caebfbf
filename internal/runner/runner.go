// Package runner executes an ordered pipeline of callables against one
// shared scope. Steps carry an ordering class (first, default, last) scoped
// to an ordering group: the keys the step requires, an explicit For key, or
// the global group for steps requiring nothing. Within each group every
// first step precedes every default step precedes every last step, with
// registration order breaking ties; steps sharing no group stay in
// registration order relative to each other.
package runner

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/vk/wirecell/internal/ctxlog"
	"github.com/vk/wirecell/internal/declare"
	"github.com/vk/wirecell/internal/engine"
	"github.com/vk/wirecell/internal/scope"
)

var (
	ctxType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	scopeType = reflect.TypeOf((*scope.Scope)(nil))
)

// Ordering classifies when a step runs relative to the rest of its
// ordering group.
type Ordering int

const (
	// OrderDefault runs in registration order between the group's first and
	// last steps.
	OrderDefault Ordering = iota
	// OrderFirst runs before every default and last step of its group.
	OrderFirst
	// OrderLast runs after every first and default step of its group.
	OrderLast
)

func (o Ordering) String() string {
	switch o {
	case OrderFirst:
		return "first"
	case OrderLast:
		return "last"
	default:
		return "default"
	}
}

func (o Ordering) rank() int {
	switch o {
	case OrderFirst:
		return 0
	case OrderLast:
		return 2
	default:
		return 1
	}
}

// Step is one pipeline entry: a callable, its declarations, and its
// ordering tag, optionally scoped to a type key's ordering group.
type Step struct {
	fn       any
	name     string
	requires declare.Requires
	returns  declare.Returns
	order    Ordering
	group    scope.Key
}

// Name returns the step's display name.
func (st *Step) Name() string { return st.name }

// Option configures a step at registration time.
type Option func(*Step)

// First tags the step to run before all default and last steps of its
// ordering groups.
func First() Option {
	return func(st *Step) { st.order = OrderFirst }
}

// Last tags the step to run after all first and default steps of its
// ordering groups.
func Last() Option {
	return func(st *Step) { st.order = OrderLast }
}

// For narrows the step's ordering tag to a single key's group. The step
// still participates in the groups of its other requirement keys, but with
// default rank there.
func For(k scope.Key) Option {
	return func(st *Step) { st.group = k }
}

// Name overrides the step's display name, which defaults to the callable's
// function name.
func Name(name string) Option {
	return func(st *Step) { st.name = name }
}

// Requires sets explicit requirements for the step.
func Requires(reqs ...scope.Requirement) Option {
	return func(st *Step) { st.requires = declare.Requires(reqs) }
}

// RequiresKeys sets explicit requirements from plain keys.
func RequiresKeys(keys ...scope.Key) Option {
	return func(st *Step) { st.requires = declare.Keys(keys...) }
}

// Returns sets the step's returns policy.
func Returns(ret declare.Returns) Option {
	return func(st *Step) { st.returns = ret }
}

// Runner is an ordered pipeline of resolution and invocation steps sharing
// one scope.
type Runner struct {
	steps []*Step
}

// New creates a Runner, registering any given callables as default-ordered
// steps.
func New(fns ...any) *Runner {
	r := &Runner{}
	for _, fn := range fns {
		r.Add(fn)
	}
	return r
}

// Add registers a step. Registering a non-function panics; pipelines are
// assembled by programmers, not at run time.
func (r *Runner) Add(fn any, opts ...Option) *Runner {
	st := &Step{fn: fn, name: declare.FuncName(fn)}
	for _, opt := range opts {
		opt(st)
	}
	r.steps = append(r.steps, st)
	return r
}

// Len reports the number of registered steps.
func (r *Runner) Len() int { return len(r.steps) }

// groupKeys returns the keys defining the step's ordering groups: the keys
// of its effective requirements, minus the context and scope special keys.
func (st *Step) groupKeys() []scope.Key {
	reqs := st.requires
	if reqs == nil {
		if bound, ok := declare.BoundRequires(st.fn); ok {
			reqs = bound
		} else if t := reflect.TypeOf(st.fn); t != nil && t.Kind() == reflect.Func {
			reqs = declare.Infer(t, nil)
		}
	}
	var keys []scope.Key
	for _, req := range reqs {
		k := req.Key()
		if k.IsZero() || k.ReflectType() == ctxType || k.ReflectType() == scopeType {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// groupPeriods maps each of the step's ordering groups to the rank its tag
// holds there. A For key narrows the tag to that one group; without For the
// tag covers every group. A step requiring nothing belongs to the global
// group, identified by the zero key.
func (st *Step) groupPeriods() map[scope.Key]int {
	keys := st.groupKeys()
	periods := make(map[scope.Key]int, len(keys)+1)
	if !st.group.IsZero() {
		for _, k := range keys {
			periods[k] = OrderDefault.rank()
		}
		periods[st.group] = st.order.rank()
		return periods
	}
	if len(keys) == 0 {
		periods[scope.Key{}] = st.order.rank()
		return periods
	}
	for _, k := range keys {
		periods[k] = st.order.rank()
	}
	return periods
}

// ordered returns the execution order. Steps are placed one at a time in
// registration order: each lands after the last placed step of a shared
// group whose rank there is at most its own, and before the first placed
// step of a shared group with a greater rank. Steps sharing no group keep
// registration order relative to each other.
func (r *Runner) ordered() []*Step {
	out := make([]*Step, 0, len(r.steps))
	placed := make([]map[scope.Key]int, 0, len(r.steps))
	for _, st := range r.steps {
		p := st.groupPeriods()
		lo, hi := -1, -1
		for i, prev := range placed {
			for k, rank := range p {
				prank, shared := prev[k]
				if !shared {
					continue
				}
				if prank <= rank {
					lo = i
				} else if hi < 0 {
					hi = i
				}
			}
		}
		pos := len(out)
		switch {
		case hi >= 0 && hi > lo:
			pos = hi
		case lo >= 0:
			pos = lo + 1
		}
		out = append(out, nil)
		copy(out[pos+1:], out[pos:])
		out[pos] = st
		placed = append(placed, nil)
		copy(placed[pos+1:], placed[pos:])
		placed[pos] = p
	}
	return out
}

// Extractor runs a single step against its backing scope. The direct
// engine and the async bridge both satisfy it, so one pipeline definition
// runs under either execution model.
type Extractor interface {
	Extract(ctx context.Context, fn any, requires declare.Requires, returns declare.Returns) (any, error)
}

type scopeExtractor struct {
	s *scope.Scope
}

func (e scopeExtractor) Extract(ctx context.Context, fn any, requires declare.Requires, returns declare.Returns) (any, error) {
	return engine.Extract(ctx, e.s, fn, requires, returns)
}

// Run executes the pipeline in a fresh scope.
func (r *Runner) Run(ctx context.Context) error {
	return r.RunIn(ctx, scope.New())
}

// RunIn executes the pipeline in the given scope with the direct engine.
func (r *Runner) RunIn(ctx context.Context, s *scope.Scope) error {
	return r.RunOn(ctx, scopeExtractor{s: s})
}

// RunOn executes the pipeline on an arbitrary extractor. Each step's
// results are distributed back into the shared scope before the next step
// resolves its requirements; a failing step aborts the run with no rollback
// of already-stored resources.
func (r *Runner) RunOn(ctx context.Context, ex Extractor) error {
	logger := ctxlog.FromContext(ctx)
	steps := r.ordered()
	logger.Debug("Runner starting.", "steps", len(steps))

	for _, st := range steps {
		logger.Debug("Running step.", "step", st.name, "order", st.order.String())
		if _, err := ex.Extract(ctx, st.fn, st.requires, st.returns); err != nil {
			return annotate(err, st)
		}
		logger.Debug("Step finished.", "step", st.name)
	}
	logger.Debug("Runner finished.")
	return nil
}

// annotate names the failing step on engine-originated errors. Errors from
// the step's own callable propagate unchanged.
func annotate(err error, st *Step) error {
	var res *scope.ResolutionError
	if errors.As(err, &res) {
		res.Step = st.name
		return res
	}
	var clash *scope.ClashError
	if errors.As(err, &clash) {
		return fmt.Errorf("step %s: %w", st.name, clash)
	}
	return err
}
