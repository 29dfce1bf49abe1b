// Package ollama implements the air-gapped review agent backed by a
// locally hosted Ollama model server.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/oddessentials/reviewrouter/internal/config"
	"github.com/oddessentials/reviewrouter/internal/finding"
	"github.com/oddessentials/reviewrouter/internal/jsonutil"
	"github.com/oddessentials/reviewrouter/internal/logutil"
	"github.com/oddessentials/reviewrouter/internal/secret"
	"github.com/oddessentials/reviewrouter/internal/tokenest"
)

const (
	agentID   = "ollama"
	agentName = "Local LLM (Ollama)"

	maxFiles        = 50
	maxDiffLines    = 2000
	maxPromptTokens = 8192
	maxFindings     = 200

	defaultRequestTimeout = 10 * time.Minute
	warmupPromptTokens    = 10
	repairBudgetFloor     = 30 * time.Second
)

const defaultSystemPrompt = `You are an automated code reviewer running locally and air-gapped. Examine ` +
	`the supplied unified diff for correctness, security, and maintainability issues. Respond with a ` +
	`single JSON object and nothing else.`

const findingsSchema = `{"findings":[{"severity":"critical|high|medium|low","file":"path/to/file","line":1,"message":"...","ruleId":"..."}]}`

// transport is the subset of HTTP behavior this agent depends on, so
// tests can substitute a fake without a real Ollama server.
type transport interface {
	// generate streams a single /api/generate call, invoking onFragment
	// for each "response" fragment as it arrives, honoring ctx
	// cancellation between chunks. It returns the concatenated text.
	generate(ctx context.Context, baseURL, model, prompt string, options map[string]interface{}, onFragment func(string)) (string, error)
}

type httpTransport struct {
	client *http.Client
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateLine struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (t *httpTransport) generate(ctx context.Context, baseURL, model, prompt string, options map[string]interface{}, onFragment func(string)) (string, error) {
	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt, Stream: true, Options: options})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama: unexpected status %d: %s", resp.StatusCode, string(data))
	}

	var out strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return out.String(), ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var lr generateLine
		if err := json.Unmarshal([]byte(line), &lr); err != nil {
			continue
		}
		if lr.Error != "" {
			return out.String(), errors.New("ollama: " + lr.Error)
		}
		if lr.Response != "" {
			out.WriteString(lr.Response)
			if onFragment != nil {
				onFragment(lr.Response)
			}
		}
		if lr.Done {
			break
		}
	}
	return out.String(), scanner.Err()
}

// Agent reviews a diff against a locally hosted Ollama server.
type Agent struct {
	transport transport
	breaker   *gobreaker.CircuitBreaker
	logger    logutil.LoggerInterface
	estimator *tokenest.Estimator
}

// New constructs the Ollama agent with its own circuit breaker,
// isolating one agent's repeated local-server failures from the rest
// of its own retries without affecting peer agents.
func New(logger logutil.LoggerInterface) *Agent {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ollama",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Agent{
		transport: &httpTransport{client: &http.Client{Timeout: defaultRequestTimeout}},
		breaker:   breaker,
		logger:    logger,
		estimator: tokenest.New(),
	}
}

func (a *Agent) ID() string    { return agentID }
func (a *Agent) Name() string  { return agentName }
func (a *Agent) UsesLLM() bool { return true }

func (a *Agent) Supports(file finding.DiffFile) bool {
	return file.Status != finding.StatusDeleted
}

func (a *Agent) Run(ctx context.Context, ac finding.AgentContext) finding.AgentResult {
	start := time.Now()
	metrics := func() finding.AgentMetrics {
		return finding.AgentMetrics{DurationMs: time.Since(start).Milliseconds(), FilesProcessed: len(ac.Files)}
	}

	baseURL := ac.Env["OLLAMA_BASE_URL"]
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := ac.Env["OLLAMA_MODEL"]
	if model == "" {
		model = ac.EffectiveModel
	}
	optional := strings.EqualFold(ac.Env["LOCAL_LLM_OPTIONAL"], "true")

	if err := a.warmUp(ctx, baseURL, model); err != nil {
		if isConnectionError(err) {
			if optional {
				return finding.NewSkippedResult(agentID, "local LLM endpoint unavailable: "+err.Error(), metrics())
			}
			return finding.NewFailureResult(agentID, err, finding.StagePreflight, nil, metrics())
		}
		if a.logger != nil {
			a.logger.Warn("ollama warm-up failed, proceeding anyway", "error", err.Error())
		}
	}

	files := sortedFiles(ac.Files)
	redacted := secret.NewRedactor().RedactDiff(ac.DiffContent)
	diffText, filesOmitted := truncateFiles(redacted, files, maxFiles)
	diffText, linesTruncated := truncateLines(diffText, maxDiffLines)

	userPrompt := buildUserPrompt(files, diffText, filesOmitted, linesTruncated)
	fullPrompt := defaultSystemPrompt + "\n\n" + userPrompt

	tokenCount, _, _ := a.estimator.Estimate(fullPrompt, model)
	estimated := int32(tokenCount)
	if tokenCount > maxPromptTokens {
		m := metrics()
		m.TokensUsed = &estimated
		return finding.NewFailureResult(agentID, fmt.Errorf("ollama: prompt estimate %d exceeds max %d tokens", tokenCount, maxPromptTokens), finding.StagePreflight, nil, m)
	}

	options := buildOptions(ac.Env)
	if cfg, ok := ac.Config.(*config.Config); ok && cfg.Limits.MaxCompletionTokens > 0 {
		if _, set := options["num_predict"]; !set {
			options["num_predict"] = cfg.Limits.MaxCompletionTokens
		}
	}
	deadline, hasDeadline := ctx.Deadline()

	// A generate-level transport failure is not retried with a repair
	// prompt; only a parse failure gets a second attempt.
	text, genErr := a.runGenerate(ctx, baseURL, model, userPrompt, options)
	if genErr != nil {
		m := metrics()
		m.TokensUsed = &estimated
		return finding.NewFailureResult(agentID, genErr, finding.StageExec, nil, m)
	}

	findings, parseErr := parseResponse(text, agentID)
	if parseErr != nil {
		remaining := repairBudgetFloor
		if hasDeadline {
			remaining = time.Until(deadline)
		}
		if remaining >= repairBudgetFloor {
			repairPrompt := buildRepairPrompt(text)
			repairText, repairErr := a.runGenerate(ctx, baseURL, model, repairPrompt, options)
			if repairErr == nil {
				if f2, err2 := parseResponse(repairText, agentID); err2 == nil {
					findings = f2
					parseErr = nil
				}
			}
		}
	}

	m := metrics()
	m.TokensUsed = &estimated
	if parseErr != nil {
		return finding.NewFailureResult(agentID, parseErr, finding.StagePostprocess, nil, m)
	}

	findings = postprocess(findings)
	return finding.NewSuccessResult(agentID, findings, m)
}

func (a *Agent) runGenerate(ctx context.Context, baseURL, model, prompt string, options map[string]interface{}) (string, error) {
	result, err := a.breaker.Execute(func() (interface{}, error) {
		return a.transport.generate(ctx, baseURL, model, prompt, options, nil)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (a *Agent) warmUp(ctx context.Context, baseURL, model string) error {
	_, err := a.transport.generate(ctx, baseURL, model, "ping", map[string]interface{}{"num_predict": warmupPromptTokens}, nil)
	return err
}

func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func buildOptions(env map[string]string) map[string]interface{} {
	options := map[string]interface{}{
		"temperature": 0,
		"seed":        42,
	}
	if v, err := strconv.Atoi(env["LOCAL_LLM_NUM_CTX"]); err == nil && v > 0 {
		options["num_ctx"] = v
	}
	if v, err := strconv.Atoi(env["LOCAL_LLM_NUM_PREDICT"]); err == nil && v > 0 {
		options["num_predict"] = v
	}
	return options
}

func sortedFiles(files []finding.DiffFile) []finding.DiffFile {
	out := make([]finding.DiffFile, len(files))
	copy(out, files)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// truncateFiles keeps at most limit files (by the already-sorted
// order) and filters the diff text down to only the hunks whose
// "diff --git ... b/<path>" target falls within the kept set, placing an
// omission marker ahead of the kept hunks when files were dropped.
func truncateFiles(diffText string, files []finding.DiffFile, limit int) (string, int) {
	if len(files) <= limit {
		return diffText, 0
	}

	kept := make(map[string]bool, limit)
	for _, f := range files[:limit] {
		kept[f.Path] = true
	}
	omitted := len(files) - limit

	lines := strings.Split(diffText, "\n")
	out := []string{fmt.Sprintf("… %d files omitted …", omitted)}
	include := false
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			include = hunkTargetKept(line, kept)
		}
		if include {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), omitted
}

func hunkTargetKept(diffGitLine string, kept map[string]bool) bool {
	fields := strings.Fields(diffGitLine)
	for _, f := range fields {
		if strings.HasPrefix(f, "b/") {
			path := strings.TrimPrefix(f, "b/")
			return kept[path]
		}
	}
	return false
}

func truncateLines(diffText string, limit int) (string, int) {
	lines := strings.Split(diffText, "\n")
	if len(lines) <= limit {
		return diffText, 0
	}
	truncated := len(lines) - limit
	out := append(lines[:limit], fmt.Sprintf("… truncated %d lines …", truncated))
	return strings.Join(out, "\n"), truncated
}

func buildUserPrompt(files []finding.DiffFile, diffText string, filesOmitted, linesTruncated int) string {
	var b strings.Builder
	b.WriteString("Files changed:\n")
	limit := len(files)
	if filesOmitted > 0 {
		limit = maxFiles
	}
	for _, f := range files[:limit] {
		fmt.Fprintf(&b, "- %s (+%d/-%d)\n", f.Path, f.Additions, f.Deletions)
	}
	b.WriteString("\n```diff\n")
	b.WriteString(diffText)
	b.WriteString("\n```\n\n")
	b.WriteString("Respond with a single JSON object matching exactly this schema:\n")
	b.WriteString(findingsSchema)
	return b.String()
}

func buildRepairPrompt(rawResponse string) string {
	return "Your previous response did not parse as JSON. Here is what you sent:\n\n" + rawResponse +
		"\n\nRespond again with only a single JSON object conforming to this schema:\n" + findingsSchema
}

type wireFinding struct {
	Severity string `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
	RuleID   string `json:"ruleId,omitempty"`
}

type wireResponse struct {
	Findings []wireFinding `json:"findings"`
}

func parseResponse(raw, sourceAgent string) ([]finding.Finding, error) {
	obj, err := jsonutil.ExtractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var resp wireResponse
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		return nil, &jsonutil.ParseError{Preview: jsonutil.Preview(obj, 200), Reason: "invalid findings JSON: " + err.Error()}
	}

	out := make([]finding.Finding, 0, len(resp.Findings))
	for _, w := range resp.Findings {
		f := finding.Finding{
			Severity:    finding.ParseSeverity(w.Severity),
			File:        w.File,
			Line:        w.Line,
			Message:     w.Message,
			SourceAgent: sourceAgent,
			RuleID:      w.RuleID,
		}
		if !f.Valid() {
			continue
		}
		f.Fingerprint = finding.Fingerprint(f.File, f.Line, f.Message, f.RuleID)
		out = append(out, f)
	}
	return out, nil
}

// postprocess sorts by (severity, file, line, ruleId), deduplicates by
// file:line:message, and caps the result at maxFindings.
func postprocess(findings []finding.Finding) []finding.Finding {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity != b.Severity {
			return a.Severity < b.Severity
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.RuleID < b.RuleID
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
		if len(out) >= maxFindings {
			break
		}
	}
	return out
}
