package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddessentials/reviewrouter/internal/agents"
	"github.com/oddessentials/reviewrouter/internal/config"
	"github.com/oddessentials/reviewrouter/internal/finding"
)

type fakeAgent struct {
	id      string
	usesLLM bool
	result  finding.AgentResult
	panics  bool
	calls   int
}

func (f *fakeAgent) ID() string    { return f.id }
func (f *fakeAgent) Name() string  { return f.id }
func (f *fakeAgent) UsesLLM() bool { return f.usesLLM }

func (f *fakeAgent) Supports(file finding.DiffFile) bool {
	return file.Status != finding.StatusDeleted
}

func (f *fakeAgent) Run(ctx context.Context, ac finding.AgentContext) finding.AgentResult {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.result
}

var _ agents.Agent = (*fakeAgent)(nil)

func findingAt(file string, line int, ruleID string) finding.Finding {
	return finding.Finding{
		Severity:    finding.SeverityWarning,
		File:        file,
		Line:        line,
		Message:     "issue",
		SourceAgent: "x",
		RuleID:      ruleID,
		Fingerprint: finding.Fingerprint(file, line, "issue", ruleID),
	}
}

func TestRunSkipsNonSelectedLLMAgentsWithoutInvokingThem(t *testing.T) {
	anthropic := &fakeAgent{id: "anthropic", usesLLM: true, result: finding.NewSuccessResult("anthropic", nil, finding.AgentMetrics{})}
	openai := &fakeAgent{id: "openai", usesLLM: true, result: finding.NewSuccessResult("openai", nil, finding.AgentMetrics{})}
	semgrep := &fakeAgent{id: "semgrep", usesLLM: false, result: finding.NewSuccessResult("semgrep", []finding.Finding{findingAt("a.go", 1, "r1")}, finding.AgentMetrics{})}

	r := New([]agents.Agent{anthropic, openai, semgrep}, nil, nil, nil, nil, nil, "")

	env := map[string]string{"ANTHROPIC_API_KEY": "sk-test"}
	findings, summary := r.Run(context.Background(), "/repo", []finding.DiffFile{{Path: "a.go", Status: finding.StatusModified}}, "diff", env)

	assert.Equal(t, 1, anthropic.calls)
	assert.Equal(t, 0, openai.calls, "non-selected LLM agent must never be invoked")
	assert.Equal(t, 1, semgrep.calls)
	assert.Equal(t, finding.ProviderAnthropic, summary.Provider)
	require.Len(t, findings, 1)
	assert.Equal(t, "a.go", findings[0].File)

	var openaiStatus AgentStatus
	for _, s := range summary.Agents {
		if s.AgentID == "openai" {
			openaiStatus = s.Status
		}
	}
	assert.Equal(t, AgentStatusSkipped, openaiStatus)
}

func TestRunFallsBackToOllamaWithoutCloudKeys(t *testing.T) {
	ollama := &fakeAgent{id: "ollama", usesLLM: true, result: finding.NewSuccessResult("ollama", nil, finding.AgentMetrics{})}
	anthropic := &fakeAgent{id: "anthropic", usesLLM: true, result: finding.NewSuccessResult("anthropic", nil, finding.AgentMetrics{})}

	r := New([]agents.Agent{anthropic, ollama}, nil, nil, nil, nil, nil, "")

	_, summary := r.Run(context.Background(), "/repo", nil, "diff", map[string]string{})

	assert.Equal(t, finding.ProviderOllama, summary.Provider)
	assert.Equal(t, 0, anthropic.calls)
	assert.Equal(t, 1, ollama.calls)
}

func TestRunRecoversAgentPanicAsFailure(t *testing.T) {
	broken := &fakeAgent{id: "control_flow", usesLLM: false, panics: true}

	r := New([]agents.Agent{broken}, nil, nil, nil, nil, nil, "")
	_, summary := r.Run(context.Background(), "/repo", nil, "diff", map[string]string{})

	require.Len(t, summary.Agents, 1)
	assert.Equal(t, AgentStatusFailure, summary.Agents[0].Status)
}

func TestRunMergeCapUsesConfigOverride(t *testing.T) {
	var findings []finding.Finding
	for i := 0; i < 5; i++ {
		findings = append(findings, findingAt("a.go", i+1, "r"))
	}
	semgrep := &fakeAgent{id: "semgrep", result: finding.NewSuccessResult("semgrep", findings, finding.AgentMetrics{})}

	cfg := &config.Config{MergeCap: 2}
	r := New([]agents.Agent{semgrep}, cfg, nil, nil, nil, nil, "")

	merged, _ := r.Run(context.Background(), "/repo", nil, "diff", map[string]string{})
	assert.Len(t, merged, 2)
}

func TestMergeFindingsDedupesByFingerprintAndSortsBySeverityThenLine(t *testing.T) {
	dup := findingAt("a.go", 10, "r1")
	errSev := finding.Finding{Severity: finding.SeverityError, File: "a.go", Line: 1, Message: "m", RuleID: "r0", Fingerprint: "err-fp"}

	out := mergeFindings([]finding.Finding{dup, dup, errSev}, 10)

	require.Len(t, out, 2)
	assert.Equal(t, finding.SeverityError, out[0].Severity)
	assert.Equal(t, dup.Fingerprint, out[1].Fingerprint)
}

func TestMergeFindingsFallsBackToFileLineWhenFingerprintMissing(t *testing.T) {
	a := finding.Finding{File: "a.go", Line: 5, Message: "one", RuleID: "r1"}
	b := finding.Finding{File: "a.go", Line: 5, Message: "two", RuleID: "r2"}

	out := mergeFindings([]finding.Finding{a, b}, 10)
	assert.Len(t, out, 1, "empty fingerprints collide on file:line")
}
