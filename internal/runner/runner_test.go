package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/wirecell/internal/declare"
	"github.com/vk/wirecell/internal/scope"
)

type t1 struct{ v int }
type t2 struct{ v int }
type t3 struct{ v int }

func TestSimpleChain(t *testing.T) {
	// step_a produces a t1, step_b consumes it.
	var got *t1
	made := &t1{v: 1}

	r := New()
	r.Add(func() *t1 { return made })
	r.Add(func(x *t1) { got = x })

	require.NoError(t, r.Run(context.Background()))
	assert.Same(t, made, got)
}

func TestOrderingLaw(t *testing.T) {
	var calls []string
	note := func(name string) func() {
		return func() { calls = append(calls, name) }
	}

	r := New()
	r.Add(note("d1"))
	r.Add(note("l1"), Last())
	r.Add(note("f1"), First())
	r.Add(note("d2"))
	r.Add(note("f2"), First())
	r.Add(note("l2"), Last())

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"f1", "f2", "d1", "d2", "l1", "l2"}, calls)
}

func TestFirstAlwaysPrecedesRegardlessOfRegistration(t *testing.T) {
	var calls []string

	r := New()
	r.Add(func() *t1 { calls = append(calls, "parser"); return &t1{} })
	r.Add(func(x *t1) { calls = append(calls, "job") })
	r.Add(func() { calls = append(calls, "setup") }, First(), Name("setup"))

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"setup", "parser", "job"}, calls)
}

func TestComplexOrdering(t *testing.T) {
	// parse closes the *t1 group, so every later *t1 consumer slots in
	// before it, while dbs waits for the *t2 parse produces. Steps in
	// unrelated groups keep registration order.
	var calls []string

	r := New()
	r.Add(func() *t1 { calls = append(calls, "parser"); return &t1{} }, Name("parser"))
	r.Add(func(x *t1) { calls = append(calls, "args") }, Name("args"))
	r.Add(func(x *t2) *t3 { calls = append(calls, "dbs"); return &t3{} }, Name("dbs"))
	r.Add(func(x *t1) *t2 { calls = append(calls, "parse"); return &t2{} },
		Last(), For(scope.Type[*t1]()), Name("parse"))
	r.Add(func(x *t1) { calls = append(calls, "more_args") }, Name("more_args"))
	r.Add(func(x *t3) { calls = append(calls, "job") }, Name("job"))

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"parser", "args", "more_args", "parse", "dbs", "job"}, calls)
}

func TestLastDefersWithinItsGroupOnly(t *testing.T) {
	// tail is last among *t1 consumers, not last overall; an untagged
	// consumer registered afterwards still runs before it.
	var calls []string

	r := New()
	r.Add(func() *t1 { calls = append(calls, "maker"); return &t1{} }, Name("maker"))
	r.Add(func(x *t1) { calls = append(calls, "tail") }, Last(), Name("tail"))
	r.Add(func(x *t1) { calls = append(calls, "use") }, Name("use"))

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"maker", "use", "tail"}, calls)
}

func TestFirstWithinGroup(t *testing.T) {
	var calls []string

	r := New()
	r.Add(func() *t1 { calls = append(calls, "maker"); return &t1{} }, Name("maker"))
	r.Add(func(x *t1) { calls = append(calls, "late") }, Name("late"))
	r.Add(func(x *t1) { calls = append(calls, "early") }, First(), Name("early"))

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"maker", "early", "late"}, calls)
}

func TestResolutionFailureNamesStepAndKey(t *testing.T) {
	type unregistered struct{}

	r := New()
	r.Add(func(u *unregistered) {}, Name("needs_unregistered"))

	err := r.Run(context.Background())
	var res *scope.ResolutionError
	require.ErrorAs(t, err, &res)
	assert.Equal(t, "needs_unregistered", res.Step)
	assert.ErrorContains(t, err, "could not be satisfied while calling needs_unregistered")
	assert.ErrorContains(t, err, "unregistered")
}

func TestCalleeErrorPropagatesUnchanged(t *testing.T) {
	boom := errors.New("boom")
	r := New()
	r.Add(func() error { return boom })

	err := r.Run(context.Background())
	assert.Same(t, boom, err)
}

func TestNoRollbackAfterFailure(t *testing.T) {
	s := scope.New()
	r := New()
	r.Add(func() *t1 { return &t1{v: 1} })
	r.Add(func() error { return errors.New("boom") })
	r.Add(func() *t2 { return &t2{} })

	require.Error(t, r.RunIn(context.Background(), s))

	// The first step's resource stays stored.
	got, err := s.Get(context.Background(), scope.Type[*t1](), nil)
	require.NoError(t, err)
	assert.NotNil(t, got)

	// The aborted third step never ran.
	got, err = s.Get(context.Background(), scope.Type[*t2](), nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExplicitRequiresAndReturns(t *testing.T) {
	s := scope.New()
	require.NoError(t, s.Add(2, scope.Untyped(), scope.Named("x")))

	r := New()
	r.Add(func(x int) int { return x * 2 },
		RequiresKeys(scope.Label("x")),
		Returns(declare.To(scope.Label("doubled"))))

	require.NoError(t, r.RunIn(context.Background(), s))
	got, err := s.Get(context.Background(), scope.Label("doubled"), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestStorageClashNamesStep(t *testing.T) {
	r := New()
	r.Add(func() *t1 { return &t1{} }, Name("a"))
	r.Add(func() *t1 { return &t1{} }, Name("b"))

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "step b")
	var clash *scope.ClashError
	assert.ErrorAs(t, err, &clash)
}
