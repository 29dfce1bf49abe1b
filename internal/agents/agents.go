// Package agents defines the contract every review agent implements and
// the router dispatches against. Concrete agents live in subpackages
// (anthropic, openai, ollama, semgrep, controlflow); this package only
// fixes the shape they share.
package agents

import (
	"context"
	"fmt"

	"github.com/oddessentials/reviewrouter/internal/finding"
)

// Agent is the router's view of one review agent. Run must not read
// tokens outside the env it was given, must not post to the forge, and
// must never panic out to the caller — every failure becomes a
// failure{} result. Implementations are responsible for recovering
// from their own panics; see Recover for the router-side backstop.
type Agent interface {
	ID() string
	Name() string
	UsesLLM() bool
	Supports(file finding.DiffFile) bool
	Run(ctx context.Context, ac finding.AgentContext) finding.AgentResult
}

// Recover converts a recovered panic value into a failure result at
// the exec stage. Callers invoke it from a deferred function wrapping
// Run, so an agent's own bug degrades to one missing agent rather than
// aborting the whole fan-out.
func Recover(agentID string, r interface{}) finding.AgentResult {
	return finding.NewFailureResult(agentID, panicError{r}, finding.StageExec, nil, finding.AgentMetrics{})
}

type panicError struct{ v interface{} }

func (p panicError) Error() string {
	if err, ok := p.v.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", p.v)
}
