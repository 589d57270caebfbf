// Package require provides the stock Requirement variants used to satisfy
// callable parameters from a scope: plain key lookups with derived-value
// modifiers, optional defaults, alternatives, and fully custom resolution
// steps.
package require

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/wirecell/internal/scope"
)

// Value is the standard requirement: look the key up in the scope, apply
// the modifier chain, and fall back to the default when the result is
// missing. Modifiers are generative; Attr and Item return the receiver.
type Value struct {
	key    scope.Key
	ops    []Op
	def    any
	hasDef bool
}

// New builds a Value requirement for a key.
func New(key scope.Key) *Value {
	return &Value{key: key}
}

// Optional builds a Value requirement that resolves to def when the key
// cannot be satisfied.
func Optional(key scope.Key, def any) *Value {
	return New(key).Default(def)
}

// Attr appends a struct-field extraction to the modifier chain.
func (v *Value) Attr(name string) *Value {
	v.ops = append(v.ops, &attrOp{name: name})
	return v
}

// Item appends a map or slice index extraction to the modifier chain.
func (v *Value) Item(key any) *Value {
	v.ops = append(v.ops, &itemOp{key: key})
	return v
}

// Default marks the requirement optional, resolving to def when missing.
func (v *Value) Default(def any) *Value {
	v.def = def
	v.hasDef = true
	return v
}

// Key implements scope.Requirement.
func (v *Value) Key() scope.Key { return v.key }

// Resolve implements scope.Requirement. The modifier chain is applied in
// order; any modifier may short-circuit to the missing sentinel.
func (v *Value) Resolve(ctx context.Context, s *scope.Scope) (any, error) {
	o, err := s.Get(ctx, v.key, scope.Missing)
	if err != nil {
		return nil, err
	}
	for _, op := range v.ops {
		o = op.Apply(o)
		if o == scope.Missing {
			break
		}
	}
	if o == scope.Missing {
		if v.hasDef {
			return v.def, nil
		}
		return scope.Missing, nil
	}
	return o, nil
}

func (v *Value) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Value(%s", v.key)
	if v.hasDef {
		fmt.Fprintf(&b, ", default=%#v", v.def)
	}
	b.WriteString(")")
	for _, op := range v.ops {
		b.WriteString(op.String())
	}
	return b.String()
}

// AnyOf is resolved by the first of its keys that is present in the scope.
type AnyOf struct {
	keys   []scope.Key
	def    any
	hasDef bool
}

// Any builds an AnyOf requirement over the given keys.
func Any(keys ...scope.Key) *AnyOf {
	return &AnyOf{keys: keys}
}

// Default marks the requirement optional.
func (a *AnyOf) Default(def any) *AnyOf {
	a.def = def
	a.hasDef = true
	return a
}

// Key implements scope.Requirement, reporting the first alternative.
func (a *AnyOf) Key() scope.Key {
	if len(a.keys) == 0 {
		return scope.Key{}
	}
	return a.keys[0]
}

// Resolve implements scope.Requirement.
func (a *AnyOf) Resolve(ctx context.Context, s *scope.Scope) (any, error) {
	for _, key := range a.keys {
		o, err := s.Get(ctx, key, scope.Missing)
		if err != nil {
			return nil, err
		}
		if o != scope.Missing {
			return o, nil
		}
	}
	if a.hasDef {
		return a.def, nil
	}
	return scope.Missing, nil
}

func (a *AnyOf) String() string {
	parts := make([]string, len(a.keys))
	for i, k := range a.keys {
		parts[i] = k.String()
	}
	return fmt.Sprintf("AnyOf(%s)", strings.Join(parts, ", "))
}

// LikeOf is resolved by its type key or, failing that, by the first stored
// entry whose type is assignable to it. The usual use is an interface key
// satisfied by whichever concrete resource implements it.
type LikeOf struct {
	key    scope.Key
	def    any
	hasDef bool
}

// Like builds a LikeOf requirement for a type key.
func Like(key scope.Key) *LikeOf {
	return &LikeOf{key: key}
}

// Default marks the requirement optional, resolving to def when missing.
func (l *LikeOf) Default(def any) *LikeOf {
	l.def = def
	l.hasDef = true
	return l
}

// Key implements scope.Requirement.
func (l *LikeOf) Key() scope.Key { return l.key }

// Resolve implements scope.Requirement. An exact entry wins; otherwise the
// stored type keys are tried in insertion order. Label keys cannot carry
// assignability and are a usage error.
func (l *LikeOf) Resolve(ctx context.Context, s *scope.Scope) (any, error) {
	target := l.key.ReflectType()
	if target == nil {
		return nil, &scope.UsageError{
			Reason: fmt.Sprintf("Like needs a type key, got %s", l.key),
		}
	}
	o, err := s.Get(ctx, l.key, scope.Missing)
	if err != nil {
		return nil, err
	}
	if o == scope.Missing {
		for _, k := range s.Keys() {
			t := k.ReflectType()
			if t == nil || t == target || !t.AssignableTo(target) {
				continue
			}
			o, err = s.Get(ctx, k, scope.Missing)
			if err != nil {
				return nil, err
			}
			if o != scope.Missing {
				break
			}
		}
	}
	if o == scope.Missing {
		if l.hasDef {
			return l.def, nil
		}
		return scope.Missing, nil
	}
	return o, nil
}

func (l *LikeOf) String() string {
	return fmt.Sprintf("Like(%s)", l.key)
}

// Func is a requirement with a custom resolution step that bypasses the
// store lookup entirely. The step may call back into the scope or the
// engine.
type Func struct {
	key scope.Key
	fn  func(ctx context.Context, s *scope.Scope) (any, error)
}

// NewFunc builds a custom requirement. The key is used for error messages
// and for the engine's special-case keys; resolution is entirely fn's.
func NewFunc(key scope.Key, fn func(ctx context.Context, s *scope.Scope) (any, error)) *Func {
	return &Func{key: key, fn: fn}
}

// Key implements scope.Requirement.
func (f *Func) Key() scope.Key { return f.key }

// Resolve implements scope.Requirement.
func (f *Func) Resolve(ctx context.Context, s *scope.Scope) (any, error) {
	return f.fn(ctx, s)
}

func (f *Func) String() string {
	return fmt.Sprintf("Func(%s)", f.key)
}

// AsyncFunc is a custom requirement whose resolution step suspends. A
// bridge runs ResolveAsync on its scheduler; the plain engine rejects it.
type AsyncFunc struct {
	key scope.Key
	fn  func(ctx context.Context, s *scope.Scope) (any, error)
}

// NewAsyncFunc builds a suspending custom requirement.
func NewAsyncFunc(key scope.Key, fn func(ctx context.Context, s *scope.Scope) (any, error)) *AsyncFunc {
	return &AsyncFunc{key: key, fn: fn}
}

// Key implements scope.Requirement.
func (f *AsyncFunc) Key() scope.Key { return f.key }

// Resolve implements scope.Requirement for the non-suspending engine,
// which cannot run a suspending step.
func (f *AsyncFunc) Resolve(ctx context.Context, s *scope.Scope) (any, error) {
	return nil, &scope.UsageError{
		Reason: fmt.Sprintf("async requirement %s needs a bridge", f.key),
	}
}

// ResolveAsync runs the suspending step. Bridges detect this method via an
// interface check at dispatch time.
func (f *AsyncFunc) ResolveAsync(ctx context.Context, s *scope.Scope) (any, error) {
	return f.fn(ctx, s)
}

func (f *AsyncFunc) String() string {
	return fmt.Sprintf("AsyncFunc(%s)", f.key)
}
