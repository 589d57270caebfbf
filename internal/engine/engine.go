// Package engine implements the direct (non-suspending) resolution engine:
// given a callable and a scope, it resolves each requirement, invokes the
// callable, and optionally redistributes the result back into the scope.
package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/wirecell/internal/ctxlog"
	"github.com/vk/wirecell/internal/declare"
	"github.com/vk/wirecell/internal/require"
	"github.com/vk/wirecell/internal/scope"
)

var (
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	ctxType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	scopeType = reflect.TypeOf((*scope.Scope)(nil))
)

// RequiresFor determines the effective requirements for fn: the explicit
// list if given, else the side-table declaration, else signature inference.
// A declared list whose length disagrees with fn's parameter count is a
// usage error, caught here rather than as a reflect panic at invoke time.
// Inferred lists are cached on the scope; explicit lists are never cached.
func RequiresFor(s *scope.Scope, fn any, explicit declare.Requires) (declare.Requires, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, &scope.UsageError{Reason: fmt.Sprintf("cannot call %T, not a function", fn)}
	}
	if explicit != nil {
		return checkArity(v.Type(), fn, explicit)
	}
	if bound, ok := declare.BoundRequires(fn); ok {
		return checkArity(v.Type(), fn, bound)
	}
	t := v.Type()
	if cached, ok := s.CachedRequires(t); ok {
		return cached.(declare.Requires), nil
	}
	reqs := declare.Infer(t, s.RequirementFor)
	s.StoreRequires(t, reqs)
	return reqs, nil
}

func checkArity(t reflect.Type, fn any, reqs declare.Requires) (declare.Requires, error) {
	n := t.NumIn()
	if t.IsVariadic() {
		n--
	}
	if len(reqs) != n {
		return nil, &scope.UsageError{Reason: fmt.Sprintf(
			"%s takes %d parameters, %d requirements declared",
			declare.FuncName(fn), n, len(reqs))}
	}
	return reqs, nil
}

// ReturnsFor determines the effective returns policy for fn: explicit, then
// side table, then the default store-by-result-type policy.
func ReturnsFor(fn any, explicit declare.Returns) declare.Returns {
	if explicit != nil {
		return explicit
	}
	if bound, ok := declare.BoundReturns(fn); ok {
		return bound
	}
	return declare.ResultType()
}

// ResolveArg resolves one requirement against a scope, applying the
// engine's special-case keys: the scope type yields the scope itself and
// the context type yields the calling context. The special cases only
// short-circuit the stock Value variant; a custom requirement keyed by one
// of these types still runs its own resolution step. A missing result
// becomes a ResolutionError naming the requirement.
func ResolveArg(ctx context.Context, s *scope.Scope, req scope.Requirement) (any, error) {
	if _, stock := req.(*require.Value); stock {
		if v, ok := specialCase(ctx, s, req.Key()); ok {
			return v, nil
		}
	}
	o, err := req.Resolve(ctx, s)
	if err != nil {
		return nil, err
	}
	if o == scope.Missing {
		return nil, &scope.ResolutionError{
			Requirement: fmt.Sprint(req),
			Key:         req.Key(),
		}
	}
	return o, nil
}

func specialCase(ctx context.Context, s *scope.Scope, key scope.Key) (any, bool) {
	switch key.ReflectType() {
	case scopeType:
		return s, true
	case ctxType:
		return ctx, true
	}
	return nil, false
}

// Invoke calls fn with the already-resolved argument values. A trailing
// error return is split off; remaining returns collapse to nil, the single
// value, or a []any tuple.
func Invoke(fn any, args []any) (any, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		pt := t.In(i)
		if a == nil {
			in[i] = reflect.Zero(pt)
			continue
		}
		av := reflect.ValueOf(a)
		if !av.Type().AssignableTo(pt) {
			return nil, &scope.UsageError{
				Reason: fmt.Sprintf("resolved %T for parameter %d of %s, need %s",
					a, i, declare.FuncName(fn), pt),
			}
		}
		in[i] = av
	}
	out := v.Call(in)
	return splitResult(t, out)
}

func splitResult(t reflect.Type, out []reflect.Value) (any, error) {
	n := len(out)
	var err error
	if n > 0 && t.Out(n-1).Implements(errorType) {
		if e := out[n-1].Interface(); e != nil {
			err = e.(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, err
	case 1:
		return out[0].Interface(), err
	default:
		vals := make([]any, len(out))
		for i, o := range out {
			vals[i] = o.Interface()
		}
		return vals, err
	}
}

// Call resolves fn's requirements against s and invokes it. Errors raised
// by fn itself propagate unchanged.
func Call(ctx context.Context, s *scope.Scope, fn any, requires declare.Requires) (any, error) {
	reqs, err := RequiresFor(s, fn, requires)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Resolving callable.",
		"fn", declare.FuncName(fn), "requirements", len(reqs))

	args := make([]any, len(reqs))
	for i, req := range reqs {
		o, err := ResolveArg(ctx, s, req)
		if err != nil {
			return nil, err
		}
		args[i] = o
	}
	return Invoke(fn, args)
}

// Store writes the pairs produced by a returns policy into the scope via
// the clash-checked Add path. A clash is a hard error: a step must not
// overwrite an existing resource.
func Store(s *scope.Scope, pairs []declare.Pair) error {
	for _, p := range pairs {
		opts := make([]scope.AddOption, 0, 2)
		if t := p.Key.ReflectType(); t != nil {
			opts = append(opts, scope.ProvidesType(t))
		} else {
			opts = append(opts, scope.Untyped(), scope.Named(p.Key.LabelName()))
		}
		if err := s.Add(p.Value, opts...); err != nil {
			return err
		}
	}
	return nil
}

// Extract calls fn, then applies the effective returns policy, storing each
// derived resource in s. The raw result is returned unchanged; storage is a
// side effect, not a transformation.
func Extract(ctx context.Context, s *scope.Scope, fn any, requires declare.Requires, returns declare.Returns) (any, error) {
	result, err := Call(ctx, s, fn, requires)
	if err != nil {
		return result, err
	}
	ret := ReturnsFor(fn, returns)
	pairs, err := ret.Process(result)
	if err != nil {
		return result, err
	}
	if err := Store(s, pairs); err != nil {
		return result, err
	}
	return result, nil
}
