// Package declare is the extraction collaborator: it turns callables into
// requirement lists and returns policies, either from explicit declarations
// held in a side table or by inference over the callable's signature.
package declare

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/vk/wirecell/internal/require"
	"github.com/vk/wirecell/internal/scope"
)

// Requires is the ordered requirement list for a callable, one entry per
// parameter.
type Requires []scope.Requirement

// Keys builds a Requires list of plain Value requirements, one per key.
func Keys(keys ...scope.Key) Requires {
	reqs := make(Requires, len(keys))
	for i, k := range keys {
		reqs[i] = require.New(k)
	}
	return reqs
}

type binding struct {
	requires Requires
	returns  Returns
}

var (
	bindMu sync.RWMutex
	bound  = make(map[uintptr]binding)
)

// Bind records declarations for a callable in the side table, keyed by the
// function's code pointer. Closures created from the same function literal
// share a code pointer and therefore share declarations; bind distinct
// top-level functions where that matters. Binding the same callable twice
// panics, as does binding a non-function.
func Bind(fn any, requires Requires, returns Returns) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("declare: cannot bind %T, not a function", fn))
	}
	bindMu.Lock()
	defer bindMu.Unlock()
	if _, exists := bound[v.Pointer()]; exists {
		panic(fmt.Sprintf("declare: %s already bound", funcName(v)))
	}
	bound[v.Pointer()] = binding{requires: requires, returns: returns}
}

// BoundRequires returns the declared requirements for fn, if any.
func BoundRequires(fn any) (Requires, bool) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, false
	}
	bindMu.RLock()
	defer bindMu.RUnlock()
	b, ok := bound[v.Pointer()]
	if !ok || b.requires == nil {
		return nil, false
	}
	return b.requires, true
}

// BoundReturns returns the declared returns policy for fn, if any.
func BoundReturns(fn any) (Returns, bool) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, false
	}
	bindMu.RLock()
	defer bindMu.RUnlock()
	b, ok := bound[v.Pointer()]
	if !ok || b.returns == nil {
		return nil, false
	}
	return b.returns, true
}

// Infer derives a Requires list from a function type: each parameter
// becomes a requirement keyed by its type, built by factory (or the stock
// Value variant when factory is nil). A variadic tail is skipped — the
// engine never splats resources into it.
func Infer(t reflect.Type, factory scope.RequirementFactory) Requires {
	n := t.NumIn()
	if t.IsVariadic() {
		n--
	}
	reqs := make(Requires, 0, n)
	for i := 0; i < n; i++ {
		key := scope.KeyFor(t.In(i))
		var req scope.Requirement
		if factory != nil {
			req = factory(key)
		}
		if req == nil {
			req = require.New(key)
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func funcName(v reflect.Value) string {
	if f := fnForPC(v); f != "" {
		return f
	}
	return v.Type().String()
}
