// Package bridge runs resolution and invocation across the sync/async
// divide. A Bridge wraps a scope with a cooperative scheduler loop and a
// bounded worker pool: suspending work runs on the loop, plain work is
// dispatched to a worker so it can never stall the loop, and either side
// can call into the other without deadlocking.
package bridge

import (
	"context"
	"fmt"
	"reflect"

	"github.com/sourcegraph/conc/pool"

	"github.com/vk/wirecell/internal/ctxlog"
	"github.com/vk/wirecell/internal/declare"
	"github.com/vk/wirecell/internal/engine"
	"github.com/vk/wirecell/internal/require"
	"github.com/vk/wirecell/internal/scope"
)

var (
	ctxType       = reflect.TypeOf((*context.Context)(nil)).Elem()
	scopeType     = reflect.TypeOf((*scope.Scope)(nil))
	bridgeType    = reflect.TypeOf((*Bridge)(nil))
	syncScopeType = reflect.TypeOf((*SyncScope)(nil))
)

// AsyncRequirement marks a requirement that must resolve on the scheduler
// loop. The capability is declared by implementing the interface, not
// detected at resolution time.
type AsyncRequirement interface {
	scope.Requirement
	ResolveAsync(ctx context.Context, s *scope.Scope) (any, error)
}

type loopMark struct{}

func markLoop(ctx context.Context) context.Context {
	return context.WithValue(ctx, loopMark{}, true)
}

func onLoop(ctx context.Context) bool {
	v, _ := ctx.Value(loopMark{}).(bool)
	return v
}

// Bridge is the suspend-capable counterpart of the engine package. It
// produces the same values and the same storage side effects; only the
// execution placement differs.
type Bridge struct {
	sched   *Scheduler
	scope   *scope.Scope
	workers *pool.Pool
}

// New wraps a scope with a scheduler and at most workerLimit concurrent
// workers. The scope's async runner is bound so that plain Get calls can
// reach async resolvers through the loop.
func New(sched *Scheduler, s *scope.Scope, workerLimit int) *Bridge {
	b := &Bridge{
		sched:   sched,
		scope:   s,
		workers: pool.New().WithMaxGoroutines(workerLimit),
	}
	s.BindAsyncRunner(func(ctx context.Context, r scope.AsyncResolver, rs *scope.Scope, def any) (any, error) {
		return b.do(ctx, func(lctx context.Context) (any, error) {
			return r(lctx, rs, def)
		})
	})
	return b
}

// Scope returns the wrapped scope.
func (b *Bridge) Scope() *scope.Scope { return b.scope }

// Sync returns the blocking adapter handed to worker-side code.
func (b *Bridge) Sync() *SyncScope { return &SyncScope{b: b} }

// Close waits for outstanding workers. The scheduler has its own lifecycle
// and is not touched.
func (b *Bridge) Close() {
	b.workers.Wait()
}

// do runs f on the scheduler loop, directly when the caller already is the
// loop, otherwise by scheduling and blocking.
func (b *Bridge) do(ctx context.Context, f func(context.Context) (any, error)) (any, error) {
	if onLoop(ctx) {
		return f(ctx)
	}
	return b.sched.Do(func() (any, error) {
		return f(markLoop(ctx))
	})
}

// dispatch runs f on a worker and waits for it. When called from the loop
// itself the wait keeps servicing other scheduled operations, so workers
// that call back into the loop make progress.
func (b *Bridge) dispatch(ctx context.Context, f func() (any, error)) (any, error) {
	res := make(chan outcome, 1)
	b.workers.Go(func() {
		v, err := f()
		res <- outcome{value: v, err: err}
	})
	if onLoop(ctx) {
		return b.sched.serviceUntil(res)
	}
	o := <-res
	return o.value, o.err
}

// suspending reports whether fn follows the context-first signature
// convention that marks it as loop-hosted.
func suspending(t reflect.Type) bool {
	return t.NumIn() > 0 && t.In(0) == ctxType
}

// Get resolves a key against the wrapped scope. Async resolvers are routed
// through the loop by the bound runner.
func (b *Bridge) Get(ctx context.Context, key scope.Key, def any) (any, error) {
	return b.scope.Get(ctx, key, def)
}

// Call resolves fn's requirements and invokes it, placing every piece of
// work on the right side of the divide. Errors from fn itself propagate
// unchanged.
func (b *Bridge) Call(ctx context.Context, fn any, requires declare.Requires) (any, error) {
	reqs, err := engine.RequiresFor(b.scope, fn, requires)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Resolving callable on bridge.",
		"fn", declare.FuncName(fn), "requirements", len(reqs))

	// Context parameters are filled at invocation time so the callable sees
	// the context of whichever goroutine actually runs it. The special keys
	// only short-circuit stock Value requirements; custom variants keep
	// their own resolution step.
	args := make([]any, len(reqs))
	var ctxSlots []int
	for i, req := range reqs {
		if _, stock := req.(*require.Value); stock {
			switch req.Key().ReflectType() {
			case ctxType:
				ctxSlots = append(ctxSlots, i)
				continue
			case scopeType:
				args[i] = b.scope
				continue
			case bridgeType:
				args[i] = b
				continue
			case syncScopeType:
				args[i] = b.Sync()
				continue
			}
		}
		v, err := b.resolve(ctx, req)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	invoke := func(callCtx context.Context) (any, error) {
		for _, i := range ctxSlots {
			args[i] = callCtx
		}
		return engine.Invoke(fn, args)
	}
	if suspending(reflect.TypeOf(fn)) {
		return b.do(ctx, invoke)
	}
	return b.dispatch(ctx, func() (any, error) { return invoke(ctx) })
}

func (b *Bridge) resolve(ctx context.Context, req scope.Requirement) (any, error) {
	if ar, ok := req.(AsyncRequirement); ok {
		v, err := b.do(ctx, func(lctx context.Context) (any, error) {
			return ar.ResolveAsync(lctx, b.scope)
		})
		if err != nil {
			return nil, err
		}
		if v == scope.Missing {
			return nil, &scope.ResolutionError{
				Requirement: fmt.Sprint(req),
				Key:         req.Key(),
			}
		}
		return v, nil
	}
	return b.dispatch(ctx, func() (any, error) {
		return engine.ResolveArg(ctx, b.scope, req)
	})
}

// Extract calls fn and distributes its result back into the scope with the
// effective returns policy, exactly as the direct engine does.
func (b *Bridge) Extract(ctx context.Context, fn any, requires declare.Requires, returns declare.Returns) (any, error) {
	result, err := b.Call(ctx, fn, requires)
	if err != nil {
		return result, err
	}
	ret := engine.ReturnsFor(fn, returns)
	pairs, err := ret.Process(result)
	if err != nil {
		return result, err
	}
	if err := engine.Store(b.scope, pairs); err != nil {
		return result, err
	}
	return result, nil
}

// SyncScope is the blocking view of a bridged scope for worker-side code:
// lookups and mutation hit the store directly, while Call and Extract are
// scheduled onto the loop with the caller blocked until completion.
type SyncScope struct {
	b *Bridge
}

// Get resolves a key, blocking on the loop if an async resolver is hit.
func (ss *SyncScope) Get(ctx context.Context, key scope.Key, def any) (any, error) {
	return ss.b.scope.Get(ctx, key, def)
}

// Add registers a resource in the underlying scope.
func (ss *SyncScope) Add(value any, opts ...scope.AddOption) error {
	return ss.b.scope.Add(value, opts...)
}

// Remove deletes a local resource from the underlying scope.
func (ss *SyncScope) Remove(key scope.Key, strict bool) error {
	return ss.b.scope.Remove(key, strict)
}

// Call runs fn through the bridge, blocking the caller.
func (ss *SyncScope) Call(ctx context.Context, fn any, requires declare.Requires) (any, error) {
	return ss.b.Call(ctx, fn, requires)
}

// Extract runs fn through the bridge and stores its result, blocking the
// caller.
func (ss *SyncScope) Extract(ctx context.Context, fn any, requires declare.Requires, returns declare.Returns) (any, error) {
	return ss.b.Extract(ctx, fn, requires, returns)
}
