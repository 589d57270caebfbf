// Package registry maps manifest handler names to compiled Go handlers.
package registry

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/vk/wirecell/internal/ctxlog"
	"github.com/vk/wirecell/internal/declare"
)

// Handler holds the compiled Go parts of a pipeline handler.
type Handler struct {
	// NewInput builds a fresh input struct for manifest argument decoding.
	// Nil when the handler takes no arguments.
	NewInput func() any
	// Fn is the handler function invoked through the resolution engine.
	Fn any
	// Requires and Returns override the engine's inferred declarations when
	// set.
	Requires declare.Requires
	Returns  declare.Returns
}

// Module is the interface all built-in modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the registered handlers for one application instance.
type Registry struct {
	handlers map[string]*Handler
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// Register adds a handler under name. Registering the same name twice is a
// programmer error and panics.
func (r *Registry) Register(name string, h *Handler) {
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("handler with name '%s' already registered", name))
	}
	r.handlers[name] = h
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (*Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered handler names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of registered handlers.
func (r *Registry) Len() int { return len(r.handlers) }

// Validate checks the integrity of every registered handler: Fn must be a
// function and NewInput, when present, must produce a pointer to a struct.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for _, name := range r.Names() {
		h := r.handlers[name]
		if h.Fn == nil || reflect.TypeOf(h.Fn).Kind() != reflect.Func {
			return fmt.Errorf("handler '%s': Fn must be a function, got %T", name, h.Fn)
		}
		if h.NewInput != nil {
			in := h.NewInput()
			t := reflect.TypeOf(in)
			if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
				return fmt.Errorf("handler '%s': NewInput must produce a struct pointer, got %T", name, in)
			}
		}
		logger.Debug("Handler validated.", "name", name)
	}
	return nil
}
