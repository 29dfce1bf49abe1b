package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddessentials/reviewrouter/internal/finding"
)

type fakeTransport struct {
	warmupErr error
	calls     int
	fn        func(attempt int, prompt string) (string, error)
}

func (f *fakeTransport) generate(_ context.Context, _, _, prompt string, _ map[string]interface{}, _ func(string)) (string, error) {
	if strings.Contains(prompt, "ping") {
		return "", f.warmupErr
	}
	attempt := f.calls
	f.calls++
	return f.fn(attempt, prompt)
}

func testContext(env map[string]string, files []finding.DiffFile, diff string) finding.AgentContext {
	return finding.AgentContext{
		Files:          files,
		DiffContent:    diff,
		Env:            env,
		EffectiveModel: "codellama",
		Provider:       finding.ProviderOllama,
	}
}

func TestSupportsExcludesDeletedFiles(t *testing.T) {
	a := New(nil)
	assert.True(t, a.Supports(finding.DiffFile{Path: "x.ts", Status: finding.StatusAdded}))
	assert.False(t, a.Supports(finding.DiffFile{Path: "x.ts", Status: finding.StatusDeleted}))
}

func TestRunSuccessParsesFindings(t *testing.T) {
	a := New(nil)
	a.transport = &fakeTransport{fn: func(attempt int, prompt string) (string, error) {
		return `{"findings":[{"severity":"high","file":"a.ts","line":4,"message":"unchecked error","ruleId":"r9"}]}`, nil
	}}

	ctx := testContext(map[string]string{}, []finding.DiffFile{{Path: "a.ts", Status: finding.StatusModified, Additions: 2}},
		"diff --git a/a.ts b/a.ts\n+++ b/a.ts\n+const x = 1")
	result := a.Run(context.Background(), ctx)
	require.Equal(t, finding.KindSuccess, result.Kind())
	require.Len(t, result.Findings(), 1)
	assert.Equal(t, "ollama", result.Findings()[0].SourceAgent)
}

func TestRunSkipsWhenOptionalAndConnectionFails(t *testing.T) {
	a := New(nil)
	a.transport = &fakeTransport{warmupErr: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}

	ctx := testContext(map[string]string{"LOCAL_LLM_OPTIONAL": "true"}, []finding.DiffFile{{Path: "a.ts", Status: finding.StatusModified}}, "diff --git a/a.ts b/a.ts")
	result := a.Run(context.Background(), ctx)
	assert.Equal(t, finding.KindSkipped, result.Kind())
}

func TestRunFailsClosedWhenNotOptionalAndConnectionFails(t *testing.T) {
	a := New(nil)
	a.transport = &fakeTransport{warmupErr: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}

	ctx := testContext(map[string]string{}, []finding.DiffFile{{Path: "a.ts", Status: finding.StatusModified}}, "diff --git a/a.ts b/a.ts")
	result := a.Run(context.Background(), ctx)
	require.Equal(t, finding.KindFailure, result.Kind())
	assert.Equal(t, finding.StagePreflight, result.FailureStage())
}

func TestRunProceedsWhenWarmUpErrorIsNonConnection(t *testing.T) {
	a := New(nil)
	a.transport = &fakeTransport{
		warmupErr: errors.New("model not found"),
		fn: func(attempt int, prompt string) (string, error) {
			return `{"findings":[]}`, nil
		},
	}

	ctx := testContext(map[string]string{}, []finding.DiffFile{{Path: "a.ts", Status: finding.StatusModified}}, "diff --git a/a.ts b/a.ts")
	result := a.Run(context.Background(), ctx)
	assert.Equal(t, finding.KindSuccess, result.Kind())
}

// TestRunBoundsLargeInput reproduces a 60-file, 3000-line diff: the
// prompt must retain at most 50 file headers followed by an omission
// marker, then at most 2000 diff lines followed by a truncation marker.
func TestRunBoundsLargeInput(t *testing.T) {
	var files []finding.DiffFile
	var diff strings.Builder
	for i := 0; i < 60; i++ {
		path := fmt.Sprintf("pkg/file%02d.go", i)
		files = append(files, finding.DiffFile{Path: path, Status: finding.StatusModified, Additions: 1})
		fmt.Fprintf(&diff, "diff --git a/%s b/%s\n", path, path)
		fmt.Fprintf(&diff, "--- a/%s\n+++ b/%s\n", path, path)
		for l := 0; l < 50; l++ {
			fmt.Fprintf(&diff, "+line %d\n", l)
		}
	}

	var capturedPrompt string
	a := New(nil)
	a.transport = &fakeTransport{fn: func(attempt int, prompt string) (string, error) {
		capturedPrompt = prompt
		return `{"findings":[]}`, nil
	}}

	ctx := testContext(map[string]string{}, files, diff.String())
	result := a.Run(context.Background(), ctx)
	require.Equal(t, finding.KindSuccess, result.Kind())

	assert.Contains(t, capturedPrompt, "files omitted")
	assert.Contains(t, capturedPrompt, "truncated")

	fileHeaderCount := strings.Count(capturedPrompt, "diff --git ")
	assert.LessOrEqual(t, fileHeaderCount, maxFiles)
}

func TestRunFailsPreflightWhenPromptExceedsTokenBudget(t *testing.T) {
	a := New(nil)
	a.transport = &fakeTransport{fn: func(attempt int, prompt string) (string, error) {
		return `{"findings":[]}`, nil
	}}

	huge := strings.Repeat("x", maxPromptTokens*8)
	ctx := testContext(map[string]string{}, []finding.DiffFile{{Path: "a.ts", Status: finding.StatusModified}}, huge)
	result := a.Run(context.Background(), ctx)
	require.Equal(t, finding.KindFailure, result.Kind())
	assert.Equal(t, finding.StagePreflight, result.FailureStage())
}

func TestRunRepairsUnparsableResponseThenSucceeds(t *testing.T) {
	a := New(nil)
	a.transport = &fakeTransport{fn: func(attempt int, prompt string) (string, error) {
		if attempt == 0 {
			return "not json at all", nil
		}
		return `{"findings":[{"severity":"low","file":"a.ts","line":1,"message":"nit"}]}`, nil
	}}

	ctx := testContext(map[string]string{}, []finding.DiffFile{{Path: "a.ts", Status: finding.StatusModified}}, "diff --git a/a.ts b/a.ts")
	result := a.Run(context.Background(), ctx)
	require.Equal(t, finding.KindSuccess, result.Kind())
	require.Len(t, result.Findings(), 1)
}

func TestRunDedupesAndCapsFindings(t *testing.T) {
	a := New(nil)
	a.transport = &fakeTransport{fn: func(attempt int, prompt string) (string, error) {
		var b strings.Builder
		b.WriteString(`{"findings":[`)
		for i := 0; i < 5; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, `{"severity":"low","file":"a.ts","line":1,"message":"dup"}`)
		}
		b.WriteString(`]}`)
		return b.String(), nil
	}}

	ctx := testContext(map[string]string{}, []finding.DiffFile{{Path: "a.ts", Status: finding.StatusModified}}, "diff --git a/a.ts b/a.ts")
	result := a.Run(context.Background(), ctx)
	require.Equal(t, finding.KindSuccess, result.Kind())
	assert.Len(t, result.Findings(), 1)
}
