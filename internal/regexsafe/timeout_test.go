package regexsafe

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampTimeout(t *testing.T) {
	assert.Equal(t, defaultTimeout, ClampTimeout(0))
	assert.Equal(t, minTimeout, ClampTimeout(1*time.Millisecond))
	assert.Equal(t, maxTimeout, ClampTimeout(5*time.Second))
	assert.Equal(t, 500*time.Millisecond, ClampTimeout(500*time.Millisecond))
}

func TestMatchStringAcceptsBoundaryInput(t *testing.T) {
	re, err := New(`foo`, 100*time.Millisecond)
	require.NoError(t, err)

	input := strings.Repeat("a", MaxInputLen)
	result := re.MatchString(input)
	assert.False(t, result.Matched)
	assert.False(t, result.TimedOut)
}

func TestMatchStringRejectsOverLongInputWithoutRunningEngine(t *testing.T) {
	re, err := New(`foo`, 100*time.Millisecond)
	require.NoError(t, err)

	input := strings.Repeat("a", MaxInputLen+1)
	result := re.MatchString(input)
	assert.False(t, result.Matched)
	assert.False(t, result.TimedOut)
	assert.Zero(t, result.ElapsedMs)
}

func TestMatchStringMatches(t *testing.T) {
	re, err := New(`^foo\d+$`, 100*time.Millisecond)
	require.NoError(t, err)

	result := re.MatchString("foo123")
	assert.True(t, result.Matched)
	assert.False(t, result.TimedOut)
}

func TestMatchStringNoMatch(t *testing.T) {
	re, err := New(`^foo\d+$`, 100*time.Millisecond)
	require.NoError(t, err)

	result := re.MatchString("bar123")
	assert.False(t, result.Matched)
	assert.False(t, result.TimedOut)
}
