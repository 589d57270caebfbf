package declare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/wirecell/internal/scope"
)

type widget struct {
	n int
}

func TestResultType(t *testing.T) {
	t.Run("stores by runtime type", func(t *testing.T) {
		w := &widget{n: 1}
		pairs, err := ResultType().Process(w)
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, scope.Type[*widget](), pairs[0].Key)
		assert.Same(t, w, pairs[0].Value)
	})

	t.Run("nil ignored", func(t *testing.T) {
		pairs, err := ResultType().Process(nil)
		require.NoError(t, err)
		assert.Empty(t, pairs)
	})
}

func TestTo(t *testing.T) {
	t.Run("single key", func(t *testing.T) {
		pairs, err := To(scope.Label("w")).Process("value")
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, scope.Label("w"), pairs[0].Key)
		assert.Equal(t, "value", pairs[0].Value)
	})

	t.Run("single key nil ignored", func(t *testing.T) {
		pairs, err := To(scope.Label("w")).Process(nil)
		require.NoError(t, err)
		assert.Empty(t, pairs)
	})

	t.Run("multiple keys zip a sequence", func(t *testing.T) {
		pairs, err := To(scope.Label("a"), scope.Label("b")).Process([]any{1, 2})
		require.NoError(t, err)
		require.Len(t, pairs, 2)
		assert.Equal(t, scope.Label("a"), pairs[0].Key)
		assert.Equal(t, 1, pairs[0].Value)
		assert.Equal(t, scope.Label("b"), pairs[1].Key)
		assert.Equal(t, 2, pairs[1].Value)
	})

	t.Run("nil elements skipped", func(t *testing.T) {
		pairs, err := To(scope.Label("a"), scope.Label("b")).Process([]any{nil, 2})
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, scope.Label("b"), pairs[0].Key)
	})

	t.Run("non-sequence rejected", func(t *testing.T) {
		_, err := To(scope.Label("a"), scope.Label("b")).Process(7)
		var usage *scope.UsageError
		assert.ErrorAs(t, err, &usage)
	})

	t.Run("length mismatch rejected", func(t *testing.T) {
		_, err := To(scope.Label("a"), scope.Label("b")).Process([]any{1})
		var usage *scope.UsageError
		assert.ErrorAs(t, err, &usage)
	})
}

func TestSequence(t *testing.T) {
	w := &widget{}
	pairs, err := Sequence().Process([]any{w, nil, "s"})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, scope.Type[*widget](), pairs[0].Key)
	assert.Equal(t, scope.Type[string](), pairs[1].Key)
}

func TestMapping(t *testing.T) {
	t.Run("key map used directly", func(t *testing.T) {
		pairs, err := Mapping().Process(map[scope.Key]any{
			scope.Type[*widget](): &widget{},
		})
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, scope.Type[*widget](), pairs[0].Key)
	})

	t.Run("string map keys become labels", func(t *testing.T) {
		pairs, err := Mapping().Process(map[string]any{"x": 1})
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Equal(t, scope.Label("x"), pairs[0].Key)
		assert.Equal(t, 1, pairs[0].Value)
	})

	t.Run("nil values kept", func(t *testing.T) {
		pairs, err := Mapping().Process(map[string]any{"x": nil})
		require.NoError(t, err)
		require.Len(t, pairs, 1)
		assert.Nil(t, pairs[0].Value)
	})

	t.Run("non-map rejected", func(t *testing.T) {
		_, err := Mapping().Process([]any{1})
		var usage *scope.UsageError
		assert.ErrorAs(t, err, &usage)
	})
}

func TestNothing(t *testing.T) {
	pairs, err := Nothing().Process("anything")
	require.NoError(t, err)
	assert.Empty(t, pairs)
}
