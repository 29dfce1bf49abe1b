package semgrep

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddessentials/reviewrouter/internal/finding"
)

type fakeRunner struct {
	stdout []byte
	err    error
}

func (f *fakeRunner) run(_ context.Context, _ string, _ []string) ([]byte, error) {
	return f.stdout, f.err
}

func testContext(files []finding.DiffFile) finding.AgentContext {
	return finding.AgentContext{Files: files}
}

func TestSupportsExcludesDeletedFiles(t *testing.T) {
	a := New()
	assert.True(t, a.Supports(finding.DiffFile{Path: "x.go", Status: finding.StatusModified}))
	assert.False(t, a.Supports(finding.DiffFile{Path: "x.go", Status: finding.StatusDeleted}))
}

func TestRunSuccessParsesReport(t *testing.T) {
	a := New()
	a.runner = &fakeRunner{stdout: []byte(`{"results":[
		{"check_id":"go.lang.security.audit.sqli","path":"a.go","start":{"line":10},"end":{"line":10},
		 "extra":{"message":"possible SQL injection","severity":"ERROR"}}
	]}`)}

	result := a.Run(context.Background(), testContext([]finding.DiffFile{{Path: "a.go", Status: finding.StatusModified}}))
	require.Equal(t, finding.KindSuccess, result.Kind())
	require.Len(t, result.Findings(), 1)
	f := result.Findings()[0]
	assert.Equal(t, finding.SeverityError, f.Severity)
	assert.Equal(t, "semgrep", f.SourceAgent)
	assert.Equal(t, "go.lang.security.audit.sqli", f.RuleID)
}

func TestRunSkipsWhenNoSupportedFiles(t *testing.T) {
	a := New()
	a.runner = &fakeRunner{err: errors.New("should not be called")}

	result := a.Run(context.Background(), testContext([]finding.DiffFile{{Path: "a.go", Status: finding.StatusDeleted}}))
	require.Equal(t, finding.KindSkipped, result.Kind())
	assert.Empty(t, result.Findings())
}

func TestRunFailsAtExecOnSubprocessError(t *testing.T) {
	a := New()
	a.runner = &fakeRunner{err: errors.New("semgrep: command not found")}

	result := a.Run(context.Background(), testContext([]finding.DiffFile{{Path: "a.go", Status: finding.StatusModified}}))
	require.Equal(t, finding.KindFailure, result.Kind())
	assert.Equal(t, finding.StageExec, result.FailureStage())
}

func TestRunFailsAtPostprocessOnUnparsableReport(t *testing.T) {
	a := New()
	a.runner = &fakeRunner{stdout: []byte("not json")}

	result := a.Run(context.Background(), testContext([]finding.DiffFile{{Path: "a.go", Status: finding.StatusModified}}))
	require.Equal(t, finding.KindFailure, result.Kind())
	assert.Equal(t, finding.StagePostprocess, result.FailureStage())
}
