// Package router implements the orchestrator: it resolves the run's
// provider/model, builds a scoped per-agent environment and context,
// fans a diff out to every registered agent concurrently, and merges
// the results into one deduplicated finding list.
package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oddessentials/reviewrouter/internal/agents"
	"github.com/oddessentials/reviewrouter/internal/apikey"
	"github.com/oddessentials/reviewrouter/internal/auditlog"
	"github.com/oddessentials/reviewrouter/internal/cache"
	"github.com/oddessentials/reviewrouter/internal/config"
	"github.com/oddessentials/reviewrouter/internal/envscope"
	"github.com/oddessentials/reviewrouter/internal/finding"
	"github.com/oddessentials/reviewrouter/internal/logutil"
	"github.com/oddessentials/reviewrouter/internal/ratelimit"
	"github.com/oddessentials/reviewrouter/internal/registry"
)

const defaultAgentTimeout = 60 * time.Second

// providerCandidates lists the cloud providers considered during
// resolution, in the fixed priority order the core requires. Ollama is
// deliberately absent here: it is the last-resort fallback, tried only
// once every cloud candidate has been ruled out.
var providerCandidates = []struct {
	provider finding.Provider
	keyName  string
	envVar   string
	agentID  string
}{
	{finding.ProviderAnthropic, "anthropic", "ANTHROPIC_API_KEY", "anthropic"},
	{finding.ProviderOpenAI, "openai", "OPENAI_API_KEY", "openai"},
	{finding.ProviderAzureOpenAI, "azure-openai", "AZURE_OPENAI_API_KEY", "openai"},
}

// envKindByAgentID maps each known agent id to the env allowlist
// envscope.BuildEnv should apply for it.
var envKindByAgentID = map[string]envscope.AgentKind{
	"anthropic":    envscope.AgentAnthropic,
	"openai":       envscope.AgentOpenAI,
	"ollama":       envscope.AgentOllama,
	"semgrep":      envscope.AgentSemgrep,
	"control_flow": envscope.AgentControlFlow,
}

// AgentStatus is the per-agent outcome recorded in a RunSummary.
type AgentStatus string

const (
	AgentStatusSuccess AgentStatus = "success"
	AgentStatusFailure AgentStatus = "failure"
	AgentStatusSkipped AgentStatus = "skipped"
)

// AgentSummary reports one agent's outcome for the run.
type AgentSummary struct {
	AgentID    string      `json:"agentId"`
	Status     AgentStatus `json:"status"`
	DurationMs int64       `json:"durationMs"`
	Detail     string      `json:"detail,omitempty"`
}

// RunSummary is returned alongside the merged findings: the resolved
// provider/model, a per-agent status/duration breakdown, and the run's
// total token count.
type RunSummary struct {
	Provider       finding.Provider `json:"provider"`
	EffectiveModel string           `json:"effectiveModel"`
	Agents         []AgentSummary   `json:"agents"`
	TotalTokens    int32            `json:"totalTokens,omitempty"`
	FilesSkipped   int              `json:"filesSkipped,omitempty"`
}

// Router owns the full set of registered agents and the shared
// infrastructure (cache, audit log, registry) their dispatch consults.
type Router struct {
	agentList []agents.Agent
	agentByID map[string]agents.Agent

	cfg      *config.Config
	reg      *registry.Registry
	resolver *apikey.Resolver
	cache    *cache.Cache
	audit    auditlog.Logger
	logger   logutil.LoggerInterface
	homeDir  string
	limiter  *ratelimit.ProviderLimiter
}

// WithRateLimit caps how often the router invokes a given provider's LLM
// agent, independent of per-run concurrency: a long-lived process
// driving this Router across many diffs still keeps each provider under
// its own per-minute ceiling. ratePerMin <= 0 disables limiting.
func (r *Router) WithRateLimit(ratePerMin, burst int) *Router {
	r.limiter = ratelimit.NewProviderLimiter(ratePerMin, burst)
	return r
}

// New builds a Router from its dependencies. cfg, cch, and audit may be
// nil: a nil cfg falls back to AgentConfig zero values and the
// registry's default models; a nil cache disables result caching; a nil
// audit logger disables the audit trail (equivalent to
// auditlog.NewNoopLogger).
func New(agentList []agents.Agent, cfg *config.Config, reg *registry.Registry, cch *cache.Cache, audit auditlog.Logger, logger logutil.LoggerInterface, homeDir string) *Router {
	if reg == nil {
		reg = registry.Default()
	}
	if audit == nil {
		audit = auditlog.NewNoopLogger()
	}
	byID := make(map[string]agents.Agent, len(agentList))
	for _, a := range agentList {
		byID[a.ID()] = a
	}
	return &Router{
		agentList: agentList,
		agentByID: byID,
		cfg:       cfg,
		reg:       reg,
		resolver:  apikey.NewResolver(logger),
		cache:     cch,
		audit:     audit,
		logger:    logger,
		homeDir:   homeDir,
	}
}

// Run dispatches diffContent over every registered, file-supporting
// agent and returns the merged, deduplicated findings plus a run
// summary. processEnv is the full host process environment; each agent
// receives only its own allowlisted, hardened subset.
func (r *Router) Run(ctx context.Context, repoPath string, files []finding.DiffFile, diffContent string, processEnv map[string]string) ([]finding.Finding, RunSummary) {
	ctx = logutil.WithCorrelationID(ctx)

	provider, effectiveModel := r.resolveProvider(ctx, processEnv)

	var wg sync.WaitGroup
	resultsCh := make(chan finding.AgentResult, len(r.agentList))

	for _, a := range r.agentList {
		if a.UsesLLM() && !r.llmAgentSelected(a.ID(), provider) {
			resultsCh <- finding.NewSkippedResult(a.ID(), "provider not selected for this run", finding.AgentMetrics{})
			continue
		}

		supported := make([]finding.DiffFile, 0, len(files))
		for _, f := range files {
			if a.Supports(f) {
				supported = append(supported, f)
			}
		}

		ac := finding.AgentContext{
			RepoPath:       repoPath,
			Files:          supported,
			DiffContent:    diffContent,
			Config:         r.cfg,
			Env:            envscope.BuildEnv(envKindByAgentID[a.ID()], processEnv, r.homeDir),
			EffectiveModel: effectiveModel,
			Provider:       provider,
		}

		key := r.cacheKey(a.ID(), diffContent, effectiveModel)
		if r.cache != nil {
			if cached, found, err := r.cache.Get(ctx, key); err == nil && found {
				resultsCh <- cached
				continue
			}
		}

		wg.Add(1)
		go r.runAgent(ctx, a, ac, key, &wg, resultsCh)
	}

	wg.Wait()
	close(resultsCh)

	var allFindings []finding.Finding
	var summaries []AgentSummary
	var totalTokens int32

	for res := range resultsCh {
		summaries = append(summaries, summarize(res))
		if m := res.Metrics(); m.TokensUsed != nil {
			totalTokens += *m.TokensUsed
		}

		switch res.Kind() {
		case finding.KindSuccess:
			allFindings = append(allFindings, res.Findings()...)
		case finding.KindFailure:
			allFindings = append(allFindings, res.PartialFindings()...)
		case finding.KindSkipped:
			// contributes nothing to the merge
		}

		r.audit.Log(auditlog.Entry{
			Timestamp:  time.Now(),
			Operation:  "agent.run",
			Status:     string(summarize(res).Status),
			DurationMs: res.Metrics().DurationMs,
			Outputs:    map[string]interface{}{"agentId": res.AgentID(), "findingCount": len(res.Findings())},
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].AgentID < summaries[j].AgentID })

	merged := mergeFindings(allFindings, r.mergeCap())
	return merged, RunSummary{
		Provider:       provider,
		EffectiveModel: effectiveModel,
		Agents:         summaries,
		TotalTokens:    totalTokens,
	}
}

// runAgent invokes a single agent under its configured timeout,
// recovering any panic into a failure{exec} result, then writes the
// outcome to the cache and the shared result channel. LLM-backed agents
// wait on the provider's rate limiter first, so the timeout context
// starts only once the call is actually about to fire.
func (r *Router) runAgent(ctx context.Context, a agents.Agent, ac finding.AgentContext, cacheKey string, wg *sync.WaitGroup, out chan<- finding.AgentResult) {
	defer wg.Done()

	if a.UsesLLM() {
		if err := r.limiter.Acquire(ctx, string(ac.Provider)); err != nil {
			out <- finding.NewFailureResult(a.ID(), err, finding.StagePreflight, nil, finding.AgentMetrics{})
			return
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.agentTimeout(a.ID()))
	defer cancel()

	result := func() (res finding.AgentResult) {
		defer func() {
			if rec := recover(); rec != nil {
				res = agents.Recover(a.ID(), rec)
			}
		}()
		return a.Run(runCtx, ac)
	}()

	if r.cache != nil && result.Kind() == finding.KindSuccess {
		_ = r.cache.Set(ctx, cacheKey, result)
	}

	out <- result
}

func (r *Router) agentTimeout(agentID string) time.Duration {
	if r.cfg != nil {
		if ac, ok := r.cfg.Agents[agentID]; ok && ac.TimeoutMs > 0 {
			return time.Duration(ac.TimeoutMs) * time.Millisecond
		}
	}
	return defaultAgentTimeout
}

func (r *Router) mergeCap() int {
	if r.cfg != nil && r.cfg.MergeCap > 0 {
		return r.cfg.MergeCap
	}
	return 200
}

// llmAgentSelected reports whether agentID owns the globally resolved
// provider for this run — the only LLM agent actually dispatched.
func (r *Router) llmAgentSelected(agentID string, provider finding.Provider) bool {
	switch provider {
	case finding.ProviderAnthropic:
		return agentID == "anthropic"
	case finding.ProviderOpenAI, finding.ProviderAzureOpenAI:
		return agentID == "openai"
	case finding.ProviderOllama:
		return agentID == "ollama"
	default:
		return false
	}
}

// resolveProvider inspects process env and config in the fixed
// precedence: explicit MODEL env > config default for the model, and
// Anthropic > OpenAI > Azure OpenAI > Ollama for the provider, filtered
// to providers some registered agent actually declares (owns). The real
// OS environment still takes precedence inside Resolve; processEnv's
// copy of the key is passed through as the fallback providedKey so a
// caller-supplied environment (tests, a sandboxed invocation) is
// honored even when the host process itself has no such variable set.
func (r *Router) resolveProvider(ctx context.Context, processEnv map[string]string) (finding.Provider, string) {
	for _, c := range providerCandidates {
		if _, ok := r.agentByID[c.agentID]; !ok {
			continue
		}
		result, err := r.resolver.Resolve(ctx, c.keyName, processEnv[c.envVar])
		if err != nil || result.Key == "" {
			continue
		}
		return c.provider, r.effectiveModel(processEnv, c.provider)
	}
	if _, ok := r.agentByID["ollama"]; ok {
		return finding.ProviderOllama, r.effectiveModel(processEnv, finding.ProviderOllama)
	}
	return finding.ProviderNone, ""
}

func (r *Router) effectiveModel(processEnv map[string]string, provider finding.Provider) string {
	if m := processEnv["MODEL"]; m != "" {
		return m
	}
	if r.cfg != nil && r.cfg.DefaultModel != "" {
		return r.cfg.DefaultModel
	}
	if m, ok := r.reg.DefaultModelForProvider(string(provider)); ok {
		return m.Name
	}
	return ""
}

func (r *Router) cacheKey(agentID, diffContent, effectiveModel string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", agentID, diffContent, effectiveModel, finding.SchemaVersion)))
	return hex.EncodeToString(sum[:])
}

func summarize(res finding.AgentResult) AgentSummary {
	s := AgentSummary{AgentID: res.AgentID(), DurationMs: res.Metrics().DurationMs}
	switch res.Kind() {
	case finding.KindSuccess:
		s.Status = AgentStatusSuccess
	case finding.KindFailure:
		s.Status = AgentStatusFailure
		s.Detail = res.Error()
	case finding.KindSkipped:
		s.Status = AgentStatusSkipped
		s.Detail = res.SkipReason()
	}
	return s
}

// mergeFindings concatenates, sorts (severity, file, line, ruleId), and
// dedupes by (fingerprint, file, line) — fingerprint is authoritative;
// file+line breaks ties when fingerprints are absent — then caps the
// result, dropping surplus items from the tail.
func mergeFindings(all []finding.Finding, maxFindings int) []finding.Finding {
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Severity != all[j].Severity {
			return all[i].Severity < all[j].Severity
		}
		if all[i].File != all[j].File {
			return all[i].File < all[j].File
		}
		if all[i].Line != all[j].Line {
			return all[i].Line < all[j].Line
		}
		return all[i].RuleID < all[j].RuleID
	})

	seen := make(map[string]bool, len(all))
	out := make([]finding.Finding, 0, len(all))
	for _, f := range all {
		key := f.Fingerprint
		if key == "" {
			key = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
		if len(out) >= maxFindings {
			break
		}
	}
	return out
}
