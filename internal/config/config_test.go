package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Limits: Limits{MaxCompletionTokens: 4096, BudgetTimeMs: 60000, BudgetMaxLines: 50000},
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, 200, c.MergeCap)
	assert.Equal(t, 100, c.PatternTimeoutMs)
	assert.Equal(t, 1000, c.CacheCapacity)
	assert.Equal(t, "info", c.LogLevel)
}

func TestValidateRejectsMissingLimits(t *testing.T) {
	c := Config{}
	err := c.Validate()
	require.Error(t, err)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	c := validConfig()
	c.LogLevel = "verbose"
	err := c.Validate()
	require.Error(t, err)
}

func TestValidateRejectsBadMitigationOverrideConfidence(t *testing.T) {
	c := validConfig()
	c.MitigationOverrides = []MitigationOverride{{PatternID: "cfa/injection-guard", Confidence: "extreme"}}
	err := c.Validate()
	require.Error(t, err)
}

func TestValidateAcceptsExplicitOverrides(t *testing.T) {
	c := validConfig()
	c.MergeCap = 50
	c.PatternTimeoutMs = 250
	c.CacheCapacity = 500
	c.LogLevel = "debug"
	require.NoError(t, c.Validate())
	assert.Equal(t, 50, c.MergeCap)
	assert.Equal(t, 250, c.PatternTimeoutMs)
	assert.Equal(t, 500, c.CacheCapacity)
	assert.Equal(t, "debug", c.LogLevel)
}
