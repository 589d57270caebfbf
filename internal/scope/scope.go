package scope

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// marker is the internal sentinel type. Only the package-level markers below
// are ever created.
type marker struct {
	name string
}

func (m *marker) String() string { return "<" + m.name + ">" }

// Missing is the sentinel a requirement resolves to when no value could be
// produced. It is never stored in a scope and never passed to a callable.
var Missing any = &marker{name: "missing"}

// Resolver lazily produces the value for a key. It is invoked on every Get
// for that key; the store performs no memoization of its result. The
// caller's default is passed through so a resolver can fall back to it.
type Resolver func(ctx context.Context, s *Scope, def any) (any, error)

// AsyncResolver is the suspending form of Resolver. It is only ever run on
// a bridge scheduler; a scope without a bound bridge rejects lookups that
// hit one.
type AsyncResolver func(ctx context.Context, s *Scope, def any) (any, error)

// AsyncRunner executes an AsyncResolver on behalf of a scope. A bridge
// binds one so that plain Get calls can block on the scheduler.
type AsyncRunner func(ctx context.Context, r AsyncResolver, s *Scope, def any) (any, error)

// Requirement describes how a single callable parameter is satisfied from a
// scope. Resolve may return Missing to signal that no value was produced;
// the engine turns that into a ResolutionError unless a default applies.
type Requirement interface {
	Key() Key
	Resolve(ctx context.Context, s *Scope) (any, error)
}

// RequirementFactory builds the default Requirement variant for a key. It
// is applied when requirements are inferred rather than declared.
type RequirementFactory func(Key) Requirement

type entry struct {
	typ      reflect.Type
	label    string
	value    any
	resolver Resolver
	async    AsyncResolver
}

func (e *entry) describe() string {
	switch {
	case e.resolver != nil:
		return "<resolver>"
	case e.async != nil:
		return "<async resolver>"
	default:
		return fmt.Sprintf("%#v", e.value)
	}
}

// caches hold extraction results shared between a scope and everything
// nested under it.
type caches struct {
	mu       sync.Mutex
	requires map[reflect.Type]any
	returns  map[reflect.Type]any
}

// Scope stores resources for a particular run. A scope is not internally
// synchronized: it is designed for a single resolution flow at a time, and
// concurrent mutation must be serialized by the caller.
type Scope struct {
	parent  *Scope
	byType  map[reflect.Type]*entry
	byLabel map[string]*entry
	order   []*entry
	factory RequirementFactory
	cache   *caches
	asyncRun AsyncRunner
}

// Option configures a new or nested scope.
type Option func(*Scope)

// WithRequirementFactory overrides the default Requirement variant used
// when requirements are inferred for callables resolved in this scope.
func WithRequirementFactory(f RequirementFactory) Option {
	return func(s *Scope) { s.factory = f }
}

// New creates an empty root scope.
func New(opts ...Option) *Scope {
	s := &Scope{
		byType:  make(map[reflect.Type]*entry),
		byLabel: make(map[string]*entry),
		cache: &caches{
			requires: make(map[reflect.Type]any),
			returns:  make(map[reflect.Type]any),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Nest creates a child scope. The child has its own local store but shares
// the parent's extraction caches, requirement factory and async runner
// unless overridden.
func (s *Scope) Nest(opts ...Option) *Scope {
	child := &Scope{
		parent:   s,
		byType:   make(map[reflect.Type]*entry),
		byLabel:  make(map[string]*entry),
		factory:  s.factory,
		cache:    s.cache,
		asyncRun: s.asyncRun,
	}
	for _, opt := range opts {
		opt(child)
	}
	return child
}

// Parent returns the scope this one falls back to, or nil for a root.
func (s *Scope) Parent() *Scope { return s.parent }

// RequirementFor applies the scope's requirement factory, returning nil
// when none is configured so callers can fall back to the stock variant.
func (s *Scope) RequirementFor(k Key) Requirement {
	if s.factory == nil {
		return nil
	}
	return s.factory(k)
}

// BindAsyncRunner attaches the executor used for async resolvers. It is
// called by a bridge when it adopts the scope.
func (s *Scope) BindAsyncRunner(run AsyncRunner) {
	s.asyncRun = run
}

type addConfig struct {
	typ      reflect.Type
	typSet   bool
	label    string
	resolver Resolver
	async    AsyncResolver
}

// AddOption configures a single Add call.
type AddOption func(*addConfig)

// Provides registers the resource under the given type key instead of the
// value's own type.
func Provides(k Key) AddOption {
	return func(c *addConfig) {
		c.typ = k.ReflectType()
		c.typSet = true
	}
}

// ProvidesType is Provides for an already reflected type.
func ProvidesType(t reflect.Type) AddOption {
	return func(c *addConfig) {
		c.typ = t
		c.typSet = true
	}
}

// Named also registers the resource under a label key.
func Named(label string) AddOption {
	return func(c *addConfig) { c.label = label }
}

// Untyped suppresses the inferred type key, leaving the resource reachable
// only by its label.
func Untyped() AddOption {
	return func(c *addConfig) {
		c.typ = nil
		c.typSet = true
	}
}

// WithResolver stores a lazy provider instead of a concrete value.
func WithResolver(r Resolver) AddOption {
	return func(c *addConfig) { c.resolver = r }
}

// WithAsyncResolver stores a suspending provider instead of a concrete
// value. It can only be resolved through a bridge.
func WithAsyncResolver(r AsyncResolver) AddOption {
	return func(c *addConfig) { c.async = r }
}

// Add registers a resource in the local store. The derived keys are the
// value's type (or an explicit Provides key) and any Named label; the same
// resource is reachable by either. Adding a key that already exists locally
// returns a ClashError.
func (s *Scope) Add(value any, opts ...AddOption) error {
	var cfg addConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	hasResolver := cfg.resolver != nil || cfg.async != nil
	if cfg.resolver != nil && cfg.async != nil {
		return usageErrorf("cannot add both a resolver and an async resolver")
	}
	if hasResolver && value != nil {
		return usageErrorf("cannot add both a value and a resolver")
	}
	if hasResolver && !cfg.typSet && cfg.label == "" {
		return usageErrorf("a resolver needs an explicit type or label key")
	}

	typ := cfg.typ
	if !cfg.typSet {
		typ = reflect.TypeOf(value)
	}
	if typ == nil && cfg.label == "" {
		if value == nil && !hasResolver {
			return usageErrorf("cannot add nil without an explicit key")
		}
		return usageErrorf("at least one of a type or label key is needed")
	}

	if typ != nil {
		if _, ok := s.byType[typ]; ok {
			return &ClashError{Key: KeyFor(typ)}
		}
	}
	if cfg.label != "" {
		if _, ok := s.byLabel[cfg.label]; ok {
			return &ClashError{Key: Label(cfg.label)}
		}
	}

	e := &entry{
		typ:      typ,
		label:    cfg.label,
		value:    value,
		resolver: cfg.resolver,
		async:    cfg.async,
	}
	if typ != nil {
		s.byType[typ] = e
	}
	if cfg.label != "" {
		s.byLabel[cfg.label] = e
	}
	s.order = append(s.order, e)
	return nil
}

// MustAdd is Add for wiring code where a clash is a programmer error.
func (s *Scope) MustAdd(value any, opts ...AddOption) {
	if err := s.Add(value, opts...); err != nil {
		panic(err)
	}
}

func (s *Scope) lookupLocal(key Key) *entry {
	if t := key.ReflectType(); t != nil {
		return s.byType[t]
	}
	if l := key.LabelName(); l != "" {
		return s.byLabel[l]
	}
	return nil
}

func (s *Scope) lookup(key Key) (*entry, *Scope) {
	for cur := s; cur != nil; cur = cur.parent {
		if e := cur.lookupLocal(key); e != nil {
			return e, cur
		}
	}
	return nil, nil
}

// Get returns the resolved value for key, checking the local store and then
// the parent chain. A missing key yields def, never an error. Stored
// resolvers are invoked on every call.
func (s *Scope) Get(ctx context.Context, key Key, def any) (any, error) {
	e, _ := s.lookup(key)
	if e == nil {
		return def, nil
	}
	switch {
	case e.resolver != nil:
		return e.resolver(ctx, s, def)
	case e.async != nil:
		if s.asyncRun == nil {
			return nil, usageErrorf("async resolver for %s needs a bridge", key)
		}
		return s.asyncRun(ctx, e.async, s, def)
	default:
		return e.value, nil
	}
}

// Remove deletes the local resource stored under key from both indices.
// When strict, a missing key is a NotFoundError; otherwise it is a no-op.
func (s *Scope) Remove(key Key, strict bool) error {
	e := s.lookupLocal(key)
	if e == nil {
		if strict {
			return &NotFoundError{Key: key}
		}
		return nil
	}
	if e.typ != nil {
		delete(s.byType, e.typ)
	}
	if e.label != "" {
		delete(s.byLabel, e.label)
	}
	for i, o := range s.order {
		if o == e {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Keys lists the keys reachable from this scope in insertion order, locals
// first and then the parent chain. Entries indexed both ways contribute
// both keys.
func (s *Scope) Keys() []Key {
	var keys []Key
	seenType := make(map[reflect.Type]bool)
	seenLabel := make(map[string]bool)
	for cur := s; cur != nil; cur = cur.parent {
		for _, e := range cur.order {
			if e.typ != nil && !seenType[e.typ] {
				seenType[e.typ] = true
				keys = append(keys, KeyFor(e.typ))
			}
			if e.label != "" && !seenLabel[e.label] {
				seenLabel[e.label] = true
				keys = append(keys, Label(e.label))
			}
		}
	}
	return keys
}

// String renders the local store in insertion order.
func (s *Scope) String() string {
	var b strings.Builder
	b.WriteString("<Scope: {")
	for _, e := range s.order {
		b.WriteString("\n    ")
		switch {
		case e.typ != nil && e.label != "":
			fmt.Fprintf(&b, "%s, %q", e.typ, e.label)
		case e.typ != nil:
			b.WriteString(e.typ.String())
		default:
			fmt.Fprintf(&b, "%q", e.label)
		}
		b.WriteString(": ")
		b.WriteString(e.describe())
	}
	if len(s.order) > 0 {
		b.WriteString("\n")
	}
	b.WriteString("}>")
	return b.String()
}

// CachedRequires returns the cached inferred requirements for a callable
// type, if present. The caches are shared across nested scopes.
func (s *Scope) CachedRequires(t reflect.Type) (any, bool) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	v, ok := s.cache.requires[t]
	return v, ok
}

// StoreRequires records inferred requirements for a callable type.
func (s *Scope) StoreRequires(t reflect.Type, v any) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	s.cache.requires[t] = v
}

// CachedReturns returns the cached returns policy for a callable type.
func (s *Scope) CachedReturns(t reflect.Type) (any, bool) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	v, ok := s.cache.returns[t]
	return v, ok
}

// StoreReturns records the returns policy for a callable type.
func (s *Scope) StoreReturns(t reflect.Type, v any) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	s.cache.returns[t] = v
}
