// Package semgrep implements the static-analysis review agent, invoking
// the semgrep CLI as a subprocess and parsing its JSON findings output.
package semgrep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"github.com/oddessentials/reviewrouter/internal/finding"
)

const (
	agentID   = "semgrep"
	agentName = "Semgrep"

	defaultBinary = "semgrep"
	defaultConfig = "auto"
	defaultTimeoutMs = 60_000
)

// runner abstracts subprocess execution so tests never shell out to a
// real semgrep binary.
type runner interface {
	run(ctx context.Context, binary string, args []string) (stdout []byte, exitErr error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// semgrep exits non-zero on findings; stdout is still the
			// JSON report, so only surface the error when stdout is empty.
			if stdout.Len() > 0 {
				return stdout.Bytes(), nil
			}
			return nil, fmt.Errorf("semgrep exited %d: %s", exitErr.ExitCode(), stderr.String())
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Agent runs semgrep against the changed files in a worktree and
// normalizes its JSON report into findings.
type Agent struct {
	runner   runner
	binary   string
	config   string
	timeout  time.Duration
}

// New constructs the semgrep agent. binary/config default to the
// system "semgrep" CLI with its built-in "auto" ruleset.
func New() *Agent {
	return &Agent{
		runner:  execRunner{},
		binary:  defaultBinary,
		config:  defaultConfig,
		timeout: defaultTimeoutMs * time.Millisecond,
	}
}

func (a *Agent) ID() string    { return agentID }
func (a *Agent) Name() string  { return agentName }
func (a *Agent) UsesLLM() bool { return false }

func (a *Agent) Supports(file finding.DiffFile) bool {
	return file.Status != finding.StatusDeleted
}

func (a *Agent) Run(ctx context.Context, ac finding.AgentContext) finding.AgentResult {
	start := time.Now()
	metrics := func() finding.AgentMetrics {
		return finding.AgentMetrics{DurationMs: time.Since(start).Milliseconds(), FilesProcessed: len(ac.Files)}
	}

	paths := make([]string, 0, len(ac.Files))
	for _, f := range ac.Files {
		if a.Supports(f) {
			paths = append(paths, f.Path)
		}
	}
	if len(paths) == 0 {
		return finding.NewSkippedResult(agentID, "no supported files", metrics())
	}
	sort.Strings(paths)

	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	args := append([]string{"--config", a.config, "--json", "--quiet"}, paths...)
	stdout, err := a.runner.run(runCtx, a.binary, args)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.Canceled) {
			return finding.NewFailureResult(agentID, runCtx.Err(), finding.StageExec, nil, metrics())
		}
		return finding.NewFailureResult(agentID, err, finding.StageExec, nil, metrics())
	}

	findings, parseErr := parseReport(stdout)
	if parseErr != nil {
		return finding.NewFailureResult(agentID, parseErr, finding.StagePostprocess, nil, metrics())
	}

	return finding.NewSuccessResult(agentID, findings, metrics())
}

type reportPosition struct {
	Line int `json:"line"`
}

type reportMetadata struct {
	Severity string `json:"impact"`
}

type reportExtra struct {
	Message    string         `json:"message"`
	Severity   string         `json:"severity"`
	Metadata   reportMetadata `json:"metadata"`
	Suggestion string         `json:"fix,omitempty"`
}

type reportResult struct {
	CheckID string         `json:"check_id"`
	Path    string         `json:"path"`
	Start   reportPosition `json:"start"`
	End     reportPosition `json:"end"`
	Extra   reportExtra    `json:"extra"`
}

type report struct {
	Results []reportResult `json:"results"`
}

func parseReport(raw []byte) ([]finding.Finding, error) {
	var r report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("semgrep: unparsable JSON report: %w", err)
	}

	out := make([]finding.Finding, 0, len(r.Results))
	for _, res := range r.Results {
		f := finding.Finding{
			Severity:    mapSeverity(res.Extra.Severity),
			File:        res.Path,
			Line:        res.Start.Line,
			EndLine:     res.End.Line,
			Message:     res.Extra.Message,
			SourceAgent: agentID,
			RuleID:      res.CheckID,
			Suggestion:  res.Extra.Suggestion,
		}
		if !f.Valid() {
			continue
		}
		f.Fingerprint = finding.Fingerprint(f.File, f.Line, f.Message, f.RuleID)
		out = append(out, f)
	}
	return out, nil
}

func mapSeverity(s string) finding.Severity {
	switch s {
	case "ERROR":
		return finding.SeverityError
	case "WARNING":
		return finding.SeverityWarning
	default:
		return finding.SeverityInfo
	}
}
