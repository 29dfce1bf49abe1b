// Package budget is the control-flow engine's cooperative resource
// governor: a single-owner state machine tracking elapsed time, lines
// changed, and CFG nodes visited against configured caps, with a
// degraded-mode file-priority filter for when those caps are crossed.
// It never preempts — callers must consult ShouldContinue/ShouldAnalyzeFile
// at natural checkpoints (once per file, once per path) themselves.
package budget

import (
	"fmt"
	"strings"
	"time"

	"github.com/oddessentials/reviewrouter/internal/logutil"
)

// Status is the governor's current state. It only ever moves forward:
// ok -> warning -> exceeded -> terminated.
type Status string

const (
	StatusOK         Status = "ok"
	StatusWarning    Status = "warning"
	StatusExceeded   Status = "exceeded"
	StatusTerminated Status = "terminated"
)

// Config bounds a single analysis run.
type Config struct {
	MaxDurationMs   int
	MaxLinesChanged int
	MaxCallDepth    int
	MaxNodesVisited int
}

// DefaultConfig matches the governor's documented defaults.
var DefaultConfig = Config{
	MaxDurationMs:   5 * 60 * 1000,
	MaxLinesChanged: 10000,
	MaxCallDepth:    5,
	MaxNodesVisited: 10000,
}

func (c Config) withDefaults() Config {
	if c.MaxDurationMs <= 0 {
		c.MaxDurationMs = DefaultConfig.MaxDurationMs
	}
	if c.MaxLinesChanged <= 0 {
		c.MaxLinesChanged = DefaultConfig.MaxLinesChanged
	}
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = DefaultConfig.MaxCallDepth
	}
	if c.MaxNodesVisited <= 0 {
		c.MaxNodesVisited = DefaultConfig.MaxNodesVisited
	}
	return c
}

// budgetNames enumerates the tracked budgets in a fixed order, so
// degradedReason text is deterministic rather than map-iteration order.
var budgetNames = []string{"duration", "linesChanged", "nodesVisited"}

// Governor is owned by exactly one control-flow analysis task; it is
// not safe for concurrent use and must not be shared across tasks.
type Governor struct {
	cfg    Config
	logger logutil.LoggerInterface
	clock  func() time.Time

	start        time.Time
	linesChanged int
	nodesVisited int
	filesSkipped int

	status         Status
	degradedReason string
}

// NewGovernor creates a Governor with the given config (zero fields take
// DefaultConfig's values) and an optional logger for one-time state
// transition logs (nil disables logging).
func NewGovernor(cfg Config, logger logutil.LoggerInterface) *Governor {
	return newGovernor(cfg, logger, time.Now)
}

func newGovernor(cfg Config, logger logutil.LoggerInterface, clock func() time.Time) *Governor {
	cfg = cfg.withDefaults()
	return &Governor{cfg: cfg, logger: logger, clock: clock, start: clock(), status: StatusOK}
}

// RecordLinesChanged adds n to the lines-changed counter and refreshes
// the budget state.
func (g *Governor) RecordLinesChanged(n int) {
	g.linesChanged += n
	g.checkBudget()
}

// RecordNodesVisited adds n to the CFG-nodes-visited counter and
// refreshes the budget state.
func (g *Governor) RecordNodesVisited(n int) {
	g.nodesVisited += n
	g.checkBudget()
}

// Status refreshes (duration may have advanced since the last counter
// update) and returns the governor's current state.
func (g *Governor) Status() Status {
	g.checkBudget()
	return g.status
}

// ShouldContinue reports whether the caller may keep analyzing at all;
// false once the governor has reached terminated.
func (g *Governor) ShouldContinue() bool {
	g.checkBudget()
	return g.status != StatusTerminated
}

// ShouldAnalyzeFile reports whether a file of the given priority should
// still be analyzed given the current budget state: in terminated state
// every file is skipped; in any other non-ok state, only low-priority
// files are skipped. Each skip increments FilesSkipped.
func (g *Governor) ShouldAnalyzeFile(priority FilePriority) bool {
	g.checkBudget()
	if g.status == StatusTerminated {
		g.filesSkipped++
		return false
	}
	if g.status != StatusOK && priority == PriorityLow {
		g.filesSkipped++
		return false
	}
	return true
}

// FilesSkipped returns the count of files skipped by ShouldAnalyzeFile
// so far.
func (g *Governor) FilesSkipped() int {
	return g.filesSkipped
}

// EffectiveMaxCallDepth is the configured call-depth cap in the ok
// state, or min(3, configured) in any degraded state.
func (g *Governor) EffectiveMaxCallDepth() int {
	g.checkBudget()
	if g.status == StatusOK {
		return g.cfg.MaxCallDepth
	}
	if g.cfg.MaxCallDepth < 3 {
		return g.cfg.MaxCallDepth
	}
	return 3
}

// ToFindingMetadata renders the governor's state as the metadata
// fragment every control-flow finding embeds.
func (g *Governor) ToFindingMetadata() map[string]interface{} {
	g.checkBudget()
	degraded := g.status != StatusOK
	meta := map[string]interface{}{
		"analysisDepth": g.EffectiveMaxCallDepth(),
		"degraded":      degraded,
	}
	if degraded && g.degradedReason != "" {
		meta["degradedReason"] = g.degradedReason
	}
	return meta
}

func (g *Governor) checkBudget() {
	pcts := map[string]float64{
		"duration":     float64(g.clock().Sub(g.start).Milliseconds()) / float64(g.cfg.MaxDurationMs) * 100,
		"linesChanged": float64(g.linesChanged) / float64(g.cfg.MaxLinesChanged) * 100,
		"nodesVisited": float64(g.nodesVisited) / float64(g.cfg.MaxNodesVisited) * 100,
	}

	var next Status
	var threshold float64
	switch {
	case anyAtLeast(pcts, 100):
		next, threshold = StatusTerminated, 100
	case anyAtLeast(pcts, 90):
		next, threshold = StatusExceeded, 90
	case anyAtLeast(pcts, 80):
		next, threshold = StatusWarning, 80
	default:
		next = StatusOK
	}

	if next == StatusOK {
		g.status = StatusOK
		g.degradedReason = ""
		return
	}

	g.degradedReason = describeCrossed(pcts, threshold)
	if next != g.status {
		g.logTransition(g.status, next)
		g.status = next
	}
}

func anyAtLeast(pcts map[string]float64, threshold float64) bool {
	for _, name := range budgetNames {
		if pcts[name] >= threshold {
			return true
		}
	}
	return false
}

func describeCrossed(pcts map[string]float64, threshold float64) string {
	var crossed []string
	for _, name := range budgetNames {
		if pcts[name] >= threshold {
			crossed = append(crossed, fmt.Sprintf("%s (%.0f%%)", name, pcts[name]))
		}
	}
	return fmt.Sprintf("%s at or above %.0f%%", strings.Join(crossed, ", "), threshold)
}

func (g *Governor) logTransition(from, to Status) {
	if g.logger == nil {
		return
	}
	g.logger.Warn("analysis budget state transition",
		"from", string(from), "to", string(to), "reason", g.degradedReason)
}
