// Package controlflow implements the from-scratch control-flow
// analysis agent: it parses each changed JS/TS-like file, builds a
// per-function control-flow graph, locates dangerous sink calls and the
// mitigations guarding them, and emits a finding only for a sink a path
// actually reaches unprotected.
package controlflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oddessentials/reviewrouter/internal/budget"
	"github.com/oddessentials/reviewrouter/internal/cfgbuild"
	"github.com/oddessentials/reviewrouter/internal/cfgmodel"
	"github.com/oddessentials/reviewrouter/internal/config"
	"github.com/oddessentials/reviewrouter/internal/finding"
	"github.com/oddessentials/reviewrouter/internal/findinggen"
	"github.com/oddessentials/reviewrouter/internal/logutil"
	"github.com/oddessentials/reviewrouter/internal/mitigation"
	"github.com/oddessentials/reviewrouter/internal/pathanalysis"
	"github.com/oddessentials/reviewrouter/internal/regexsafe"
	"github.com/oddessentials/reviewrouter/internal/sourceast"
)

const (
	agentID   = "control_flow"
	agentName = "Control-Flow Analyzer"

	defaultSinkTimeout = 100 * time.Millisecond
)

var supportedExt = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true,
}

// fileReader abstracts source retrieval so tests never touch the real
// filesystem.
type fileReader interface {
	readFile(repoPath, relPath string) ([]byte, error)
}

type osFileReader struct{}

func (osFileReader) readFile(repoPath, relPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(repoPath, relPath))
}

// Agent runs the control-flow engine over every supported changed file,
// mitigation-aware and budget-governed throughout.
type Agent struct {
	reader fileReader
	logger logutil.LoggerInterface
}

// New constructs the control-flow agent.
func New(logger logutil.LoggerInterface) *Agent {
	return &Agent{reader: osFileReader{}, logger: logger}
}

func (a *Agent) ID() string    { return agentID }
func (a *Agent) Name() string  { return agentName }
func (a *Agent) UsesLLM() bool { return false }

func (a *Agent) Supports(file finding.DiffFile) bool {
	if file.Status == finding.StatusDeleted {
		return false
	}
	return supportedExt[strings.ToLower(filepath.Ext(file.Path))]
}

func (a *Agent) Run(ctx context.Context, ac finding.AgentContext) finding.AgentResult {
	start := time.Now()
	filesProcessed := 0
	metrics := func() finding.AgentMetrics {
		return finding.AgentMetrics{DurationMs: time.Since(start).Milliseconds(), FilesProcessed: filesProcessed}
	}

	cfg, _ := ac.Config.(*config.Config)

	governor := budget.NewGovernor(budgetConfigFrom(cfg), a.logger)
	catalog, err := mitigation.NewCatalog(mitigationOptionsFrom(cfg))
	if err != nil {
		return finding.NewFailureResult(agentID, fmt.Errorf("control-flow: building mitigation catalog: %w", err), finding.StagePreflight, nil, metrics())
	}
	sinks := newSinkCatalog(patternTimeoutFrom(cfg))

	var paths []string
	for _, f := range ac.Files {
		if a.Supports(f) {
			paths = append(paths, f.Path)
		}
	}
	paths = budget.SortFilesByPriority(paths)

	var findings []finding.Finding
	for _, path := range paths {
		if !governor.ShouldContinue() {
			break
		}
		priority := budget.ClassifyFile(path)
		if !governor.ShouldAnalyzeFile(priority) {
			continue
		}

		src, readErr := a.reader.readFile(ac.RepoPath, path)
		if readErr != nil {
			if a.logger != nil {
				a.logger.Debug("control-flow: skipping unreadable file", "file", path, "error", readErr.Error())
			}
			continue
		}
		filesProcessed++
		governor.RecordLinesChanged(strings.Count(string(src), "\n") + 1)

		found := a.analyzeFile(path, string(src), catalog, sinks, governor)
		findings = append(findings, found...)

		if ctx.Err() != nil {
			break
		}
	}

	findings = postprocess(findings)
	return finding.NewSuccessResult(agentID, findings, metrics())
}

// analyzeFile parses a single file, builds its per-function CFGs, and
// returns one finding per sink call a path through its owning function
// reaches without a dominating mitigation.
func (a *Agent) analyzeFile(path, src string, catalog *mitigation.Catalog, sinks *sinkCatalog, governor *budget.Governor) []finding.Finding {
	prog, err := sourceast.Parse(src)
	if err != nil {
		if a.logger != nil {
			a.logger.Debug("control-flow: skipping unparsable file", "file", path, "error", err.Error())
		}
		return nil
	}

	graphs := cfgbuild.BuildFile(path, prog)
	instances := mitigation.Detect(catalog, path, prog)

	moduleFunctionNames := make(map[string]bool, len(graphs))
	for _, g := range graphs {
		moduleFunctionNames[functionShortName(g.FunctionID)] = true
	}

	var out []finding.Finding
	for _, g := range graphs {
		governor.RecordNodesVisited(len(g.Nodes))
		shortName := functionShortName(g.FunctionID)
		crossFunctionAsync := pathanalysis.HasCrossFunctionAsync(g, shortName, moduleFunctionNames)

		for _, n := range g.Nodes {
			for _, callee := range n.CallSites {
				sp, ok := sinks.match(callee)
				if !ok {
					continue
				}

				mitigatingNodes := buildMitigatingNodes(g, instances, shortName, catalog, sp.Type)
				cov := pathanalysis.AnalyzeCoverage(g, n.ID, mitigatingNodes, pathanalysis.DefaultBounds, crossFunctionAsync)

				vuln := findinggen.Vulnerability{
					ID:                  fmt.Sprintf("%s:%d:%s", path, n.Line, sp.ID),
					Type:                sp.Type,
					File:                path,
					SinkLine:            n.Line,
					AffectedVariable:    callee,
					RequiredMitigations: patternIDsForType(catalog, sp.Type),
					Description:         fmt.Sprintf("%s call reaches %q unguarded on at least one path", sp.Type, callee),
				}

				f := findinggen.Generate(vuln, cov, g, findinggen.Config{AnalysisDepth: governor.EffectiveMaxCallDepth()}, nil)
				if f == nil {
					continue
				}
				out = append(out, *f)
			}
		}
	}
	return out
}

// buildMitigatingNodes maps every node in g whose line hosts a mitigation
// instance applicable to vulnType, discovered within the same function
// scope as g, to the pattern ids that matched there.
func buildMitigatingNodes(g *cfgmodel.Graph, instances []mitigation.Instance, scope string, catalog *mitigation.Catalog, vulnType string) map[cfgmodel.NodeID][]string {
	applicable := make(map[string]bool)
	for _, p := range catalog.PatternsForVulnerability(vulnType) {
		applicable[p.ID] = true
	}

	out := make(map[cfgmodel.NodeID][]string)
	for _, inst := range instances {
		if inst.Scope != scope || !applicable[inst.PatternID] {
			continue
		}
		for _, n := range g.Nodes {
			if n.Line == inst.Line {
				out[n.ID] = append(out[n.ID], inst.PatternID)
			}
		}
	}
	return out
}

func patternIDsForType(catalog *mitigation.Catalog, vulnType string) []string {
	patterns := catalog.PatternsForVulnerability(vulnType)
	ids := make([]string, 0, len(patterns))
	for _, p := range patterns {
		ids = append(ids, p.ID)
	}
	return ids
}

// functionShortName extracts the trailing "name" component from a CFG
// FunctionID of the form "path:line:name".
func functionShortName(functionID string) string {
	idx := strings.LastIndex(functionID, ":")
	if idx < 0 {
		return functionID
	}
	return functionID[idx+1:]
}

func budgetConfigFrom(cfg *config.Config) budget.Config {
	if cfg == nil {
		return budget.Config{}
	}
	return budget.Config{
		MaxDurationMs:   cfg.Limits.BudgetTimeMs,
		MaxLinesChanged: cfg.Limits.BudgetMaxLines,
	}
}

func mitigationOptionsFrom(cfg *config.Config) mitigation.LoadOptions {
	if cfg == nil {
		return mitigation.LoadOptions{Timeout: defaultSinkTimeout, Threshold: regexsafe.DefaultRejectionThreshold}
	}
	whitelist := make(map[string]bool, len(cfg.RedosBypassPatternIDs))
	for _, id := range cfg.RedosBypassPatternIDs {
		whitelist[id] = true
	}
	return mitigation.LoadOptions{
		Overrides: cfg.MitigationOverrides,
		Timeout:   patternTimeoutFrom(cfg),
		Threshold: regexsafe.DefaultRejectionThreshold,
		Whitelist: whitelist,
	}
}

func patternTimeoutFrom(cfg *config.Config) time.Duration {
	if cfg == nil || cfg.PatternTimeoutMs <= 0 {
		return defaultSinkTimeout
	}
	return time.Duration(cfg.PatternTimeoutMs) * time.Millisecond
}

// postprocess sorts findings deterministically and drops exact
// file:line:message duplicates across functions.
func postprocess(findings []finding.Finding) []finding.Finding {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return findings[i].Severity < findings[j].Severity
		}
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].RuleID < findings[j].RuleID
	})

	seen := make(map[string]bool, len(findings))
	out := make([]finding.Finding, 0, len(findings))
	for _, f := range findings {
		key := fmt.Sprintf("%s:%d:%s", f.File, f.Line, f.Message)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}
