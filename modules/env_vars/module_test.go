package env_vars

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/wirecell/internal/registry"
	"github.com/vk/wirecell/internal/scope"
)

func TestOnRun(t *testing.T) {
	t.Setenv("WIRECELL_TEST_VAR", "present")

	env, err := OnRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "present", env.All["WIRECELL_TEST_VAR"])
}

func TestRegisterStoresSnapshotUnderEnvLabel(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)

	h, ok := r.Lookup("env_vars")
	require.True(t, ok)
	require.NotNil(t, h.Returns)

	pairs, err := h.Returns.Process(&Environ{All: map[string]string{}})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, scope.Label("env"), pairs[0].Key)
}
