package apikey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrefersEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	r := NewResolver(nil)

	result, err := r.Resolve(context.Background(), "anthropic", "param-key")
	require.NoError(t, err)
	assert.Equal(t, "env-key", result.Key)
	assert.Equal(t, SourceEnvironment, result.Source)
	assert.Equal(t, "ANTHROPIC_API_KEY", result.EnvironmentVariable)
}

func TestResolveFallsBackToParameter(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	r := NewResolver(nil)

	result, err := r.Resolve(context.Background(), "openai", "param-key")
	require.NoError(t, err)
	assert.Equal(t, "param-key", result.Key)
	assert.Equal(t, SourceParameter, result.Source)
}

func TestResolveMissingKeyErrors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	r := NewResolver(nil)

	_, err := r.Resolve(context.Background(), "openai", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai")
}

func TestResolveOllamaHasNoKeyRequirement(t *testing.T) {
	r := NewResolver(nil)
	result, err := r.Resolve(context.Background(), "ollama", "")
	require.NoError(t, err)
	assert.Equal(t, SourceNone, result.Source)
	assert.Empty(t, result.Key)
}

func TestResolveCustomEnvVarMapping(t *testing.T) {
	t.Setenv("MY_CUSTOM_KEY", "custom-value")
	r := NewResolverWithEnvVars(nil, map[string]string{"anthropic": "MY_CUSTOM_KEY"})

	result, err := r.Resolve(context.Background(), "anthropic", "")
	require.NoError(t, err)
	assert.Equal(t, "custom-value", result.Key)
	assert.Equal(t, "MY_CUSTOM_KEY", result.EnvironmentVariable)
}
