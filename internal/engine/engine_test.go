package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/wirecell/internal/declare"
	req "github.com/vk/wirecell/internal/require"
	"github.com/vk/wirecell/internal/scope"
)

type theType struct {
	name string
}

func TestCallNoParams(t *testing.T) {
	s := scope.New()
	result, err := Call(context.Background(), s, func() string { return "bar" }, nil)
	require.NoError(t, err)
	assert.Equal(t, "bar", result)
}

func TestCallInferredTypeRequirement(t *testing.T) {
	s := scope.New()
	require.NoError(t, s.Add("bar"))

	result, err := Call(context.Background(), s, func(v string) string { return v }, nil)
	require.NoError(t, err)
	assert.Equal(t, "bar", result)
}

func TestCallExplicitLabelRequirement(t *testing.T) {
	s := scope.New()
	require.NoError(t, s.Add(1, scope.Untyped(), scope.Named("x")))

	result, err := Call(context.Background(), s, func(x int) int { return x },
		declare.Keys(scope.Label("x")))
	require.NoError(t, err)
	assert.Equal(t, 1, result)
}

func TestCallMandatoryMissing(t *testing.T) {
	s := scope.New()
	_, err := Call(context.Background(), s, func(obj *theType) any { return obj }, nil)

	var res *scope.ResolutionError
	require.ErrorAs(t, err, &res)
	assert.Equal(t, scope.Type[*theType](), res.Key)
	assert.ErrorContains(t, err, "*engine.theType")
	assert.ErrorContains(t, err, "could not be satisfied")
}

func TestCallOptionalDefault(t *testing.T) {
	fn := func(x int) int { return x }

	t.Run("missing yields default", func(t *testing.T) {
		s := scope.New()
		result, err := Call(context.Background(), s, fn,
			declare.Requires{req.Optional(scope.Type[int](), 1)})
		require.NoError(t, err)
		assert.Equal(t, 1, result)
	})

	t.Run("present value wins", func(t *testing.T) {
		s := scope.New()
		require.NoError(t, s.Add(2))
		result, err := Call(context.Background(), s, fn,
			declare.Requires{req.Optional(scope.Type[int](), 1)})
		require.NoError(t, err)
		assert.Equal(t, 2, result)
	})
}

func TestCallScopeSpecialCase(t *testing.T) {
	s := scope.New()
	result, err := Call(context.Background(), s, func(cur *scope.Scope) *scope.Scope {
		return cur
	}, nil)
	require.NoError(t, err)
	assert.Same(t, s, result)
}

func TestCallContextSpecialCase(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "present")
	s := scope.New()
	result, err := Call(ctx, s, func(c context.Context) any {
		return c.Value(ctxKey{})
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "present", result)
}

func TestCallPropagatesCalleeError(t *testing.T) {
	boom := errors.New("boom")
	s := scope.New()
	_, err := Call(context.Background(), s, func() error { return boom }, nil)
	assert.Same(t, boom, err)
}

func TestCallValueAndError(t *testing.T) {
	s := scope.New()
	result, err := Call(context.Background(), s, func() (string, error) {
		return "partial", errors.New("boom")
	}, nil)
	assert.EqualError(t, err, "boom")
	assert.Equal(t, "partial", result)
}

func TestCallInterfaceParameter(t *testing.T) {
	s := scope.New()
	require.NoError(t, s.Add(errors.New("stored"), scope.Provides(scope.Type[error]())))

	result, err := Call(context.Background(), s, func(e error) string { return e.Error() }, nil)
	require.NoError(t, err)
	assert.Equal(t, "stored", result)
}

func TestCallArityMismatch(t *testing.T) {
	fn := func(a, b string) string { return a + b }

	t.Run("too few requirements", func(t *testing.T) {
		_, err := Call(context.Background(), scope.New(), fn, declare.Keys(scope.Label("x")))
		var usage *scope.UsageError
		require.ErrorAs(t, err, &usage)
		assert.ErrorContains(t, err, "takes 2 parameters, 1 requirements declared")
	})

	t.Run("too many requirements", func(t *testing.T) {
		_, err := Call(context.Background(), scope.New(), fn,
			declare.Keys(scope.Label("x"), scope.Label("y"), scope.Label("z")))
		var usage *scope.UsageError
		require.ErrorAs(t, err, &usage)
	})

	t.Run("variadic tail not counted", func(t *testing.T) {
		s := scope.New()
		require.NoError(t, s.Add("v", scope.Untyped(), scope.Named("x")))
		result, err := Call(context.Background(), s,
			func(x string, rest ...int) string { return x },
			declare.Keys(scope.Label("x")))
		require.NoError(t, err)
		assert.Equal(t, "v", result)
	})
}

func TestCallCustomRequirementOnSpecialKey(t *testing.T) {
	// The context special case must not shadow a custom resolution step
	// keyed by the context type.
	type ctxKey struct{}
	inner := context.WithValue(context.Background(), ctxKey{}, "swapped")

	custom := req.NewFunc(scope.Type[context.Context](),
		func(ctx context.Context, s *scope.Scope) (any, error) {
			return inner, nil
		})
	result, err := Call(context.Background(), scope.New(), func(c context.Context) any {
		return c.Value(ctxKey{})
	}, declare.Requires{custom})
	require.NoError(t, err)
	assert.Equal(t, "swapped", result)
}

func TestCallLikeRequirement(t *testing.T) {
	s := scope.New()
	require.NoError(t, s.Add(errors.New("stored")))

	result, err := Call(context.Background(), s,
		func(e error) string { return e.Error() },
		declare.Requires{req.Like(scope.Type[error]())})
	require.NoError(t, err)
	assert.Equal(t, "stored", result)
}

func TestCallNonFunction(t *testing.T) {
	var usage *scope.UsageError
	_, err := Call(context.Background(), scope.New(), 42, nil)
	assert.ErrorAs(t, err, &usage)
}

func TestRequiresForCaching(t *testing.T) {
	s := scope.New()
	fn := func(x int) {}

	_, err := RequiresFor(s, fn, nil)
	require.NoError(t, err)
	_, cached := s.CachedRequires(reflect.TypeOf(fn))
	assert.True(t, cached, "inferred requirements are cached")

	s2 := scope.New()
	_, err = RequiresFor(s2, fn, declare.Keys(scope.Label("x")))
	require.NoError(t, err)
	_, cached = s2.CachedRequires(reflect.TypeOf(fn))
	assert.False(t, cached, "explicit requirements are never cached")
}

func TestExtract(t *testing.T) {
	t.Run("stores by result type", func(t *testing.T) {
		s := scope.New()
		obj := &theType{name: "made"}
		result, err := Extract(context.Background(), s, func() *theType { return obj }, nil, nil)
		require.NoError(t, err)
		assert.Same(t, obj, result)

		got, err := s.Get(context.Background(), scope.Type[*theType](), nil)
		require.NoError(t, err)
		assert.Same(t, obj, got)
	})

	t.Run("explicit label policy", func(t *testing.T) {
		s := scope.New()
		_, err := Extract(context.Background(), s, func() int { return 9 }, nil,
			declare.To(scope.Label("port")))
		require.NoError(t, err)

		got, err := s.Get(context.Background(), scope.Label("port"), nil)
		require.NoError(t, err)
		assert.Equal(t, 9, got)
	})

	t.Run("ignore policy never mutates the store", func(t *testing.T) {
		s := scope.New()
		_, err := Extract(context.Background(), s, func() int { return 9 }, nil, declare.Nothing())
		require.NoError(t, err)
		assert.Equal(t, "<Scope: {}>", s.String())
	})

	t.Run("different result types never clash", func(t *testing.T) {
		s := scope.New()
		_, err := Extract(context.Background(), s, func() int { return 1 }, nil, nil)
		require.NoError(t, err)
		_, err = Extract(context.Background(), s, func() string { return "x" }, nil, nil)
		require.NoError(t, err)
	})

	t.Run("storing over an existing resource is a hard error", func(t *testing.T) {
		s := scope.New()
		require.NoError(t, s.Add(1))
		_, err := Extract(context.Background(), s, func() int { return 2 }, nil, nil)
		var clash *scope.ClashError
		require.ErrorAs(t, err, &clash)
		assert.Equal(t, scope.Type[int](), clash.Key)
	})

	t.Run("callee error skips storage", func(t *testing.T) {
		s := scope.New()
		boom := errors.New("boom")
		_, err := Extract(context.Background(), s, func() (int, error) { return 3, boom }, nil, nil)
		assert.Same(t, boom, err)
		assert.Equal(t, "<Scope: {}>", s.String())
	})
}

func TestExtractChainThroughScope(t *testing.T) {
	// step_a returns a T1; step_b consumes it.
	type t1 struct{ v int }

	s := scope.New()
	_, err := Extract(context.Background(), s, func() *t1 { return &t1{v: 5} }, nil, nil)
	require.NoError(t, err)

	result, err := Call(context.Background(), s, func(x *t1) int { return x.v }, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, result)
}
