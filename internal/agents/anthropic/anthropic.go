// Package anthropic implements the review agent backed by Anthropic's
// Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/oddessentials/reviewrouter/internal/config"
	"github.com/oddessentials/reviewrouter/internal/finding"
	"github.com/oddessentials/reviewrouter/internal/jsonutil"
	"github.com/oddessentials/reviewrouter/internal/logutil"
	"github.com/oddessentials/reviewrouter/internal/retry"
	"github.com/oddessentials/reviewrouter/internal/tokenest"
)

const (
	agentID            = "anthropic"
	agentName          = "Anthropic (Claude)"
	defaultMaxTokens   = 4096
	reviewTemperature  = 0.3
)

const defaultSystemPrompt = `You are an automated code reviewer. Examine the supplied unified diff for ` +
	`correctness, security, and maintainability issues. Report only issues you are confident about; do ` +
	`not restate the diff or praise correct code. Respond with a single JSON object and nothing else.`

const findingsSchema = `{"findings":[{"severity":"critical|high|medium|low","file":"path/to/file","line":1,"message":"...","ruleId":"...","suggestion":"..."}]}`

// rawResult is the provider-agnostic shape a Messages.New call reduces
// to, so everything downstream of the transport is provider-neutral.
type rawResult struct {
	text         string
	inputTokens  int32
	outputTokens int32
}

// api is the subset of the Anthropic SDK this agent depends on, so
// tests can substitute a fake without touching the real client or its
// response types.
type api interface {
	createMessage(ctx context.Context, systemPrompt, userPrompt, modelID string, maxTokens int32, temperature float64) (*rawResult, error)
}

type realAPI struct {
	client anthropic.Client
}

func (a *realAPI) createMessage(ctx context.Context, systemPrompt, userPrompt, modelID string, maxTokens int32, temperature float64) (*rawResult, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(modelID),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, classify(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &rawResult{
		text:         text.String(),
		inputTokens:  int32(msg.Usage.InputTokens),
		outputTokens: int32(msg.Usage.OutputTokens),
	}, nil
}

// classify maps an Anthropic SDK error to a retry.ClassifiedError so
// retry.Do can apply the shared backoff policy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &retry.ClassifiedError{Err: err, Category: retry.CategoryCancelled}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		retryAfter := retryAfterFromResponse(apiErr.Response)
		switch {
		case status == 429:
			return &retry.ClassifiedError{Err: err, Category: retry.CategoryRateLimit, RetryAfter: retryAfter}
		case status == 401 || status == 403:
			return &retry.ClassifiedError{Err: err, Category: retry.CategoryAuth}
		case status == 404:
			return &retry.ClassifiedError{Err: err, Category: retry.CategoryNotFound}
		case status >= 400 && status < 500:
			return &retry.ClassifiedError{Err: err, Category: retry.CategoryInvalidRequest}
		case status >= 500:
			return &retry.ClassifiedError{Err: err, Category: retry.CategoryServerError}
		}
	}
	return &retry.ClassifiedError{Err: err, Category: retry.CategoryTransport}
}

func retryAfterFromResponse(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	seconds, err := strconv.Atoi(h)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// Agent reviews a diff with Anthropic's Messages API.
type Agent struct {
	api       api
	logger    logutil.LoggerInterface
	estimator *tokenest.Estimator
}

// New constructs the Anthropic agent.
func New(logger logutil.LoggerInterface) *Agent {
	return &Agent{logger: logger, estimator: tokenest.New()}
}

func (a *Agent) ID() string     { return agentID }
func (a *Agent) Name() string   { return agentName }
func (a *Agent) UsesLLM() bool  { return true }

// Supports reports true for any non-deleted file; deleted files are
// already excluded by the router before Supports is consulted.
func (a *Agent) Supports(file finding.DiffFile) bool {
	return file.Status != finding.StatusDeleted
}

// Run sends the diff to Claude and parses its JSON findings response.
func (a *Agent) Run(ctx context.Context, ac finding.AgentContext) finding.AgentResult {
	start := time.Now()
	metrics := func() finding.AgentMetrics {
		return finding.AgentMetrics{DurationMs: time.Since(start).Milliseconds(), FilesProcessed: len(ac.Files)}
	}

	key := ac.Env["ANTHROPIC_API_KEY"]
	if key == "" {
		return finding.NewSkippedResult(agentID, "ANTHROPIC_API_KEY not set", metrics())
	}

	apiClient := a.api
	if apiClient == nil {
		apiClient = &realAPI{client: anthropic.NewClient(option.WithAPIKey(key))}
	}

	maxTokens := int32(defaultMaxTokens)
	if cfg, ok := ac.Config.(*config.Config); ok && cfg.Limits.MaxCompletionTokens > 0 {
		maxTokens = int32(cfg.Limits.MaxCompletionTokens)
	}

	userPrompt := buildUserPrompt(ac.Files, ac.DiffContent)
	tokenCount, _, _ := a.estimator.Estimate(defaultSystemPrompt+userPrompt, ac.EffectiveModel)
	estimated := int32(tokenCount)

	var result *rawResult
	callErr := retry.Do(ctx, func(attempt int) error {
		r, err := apiClient.createMessage(ctx, defaultSystemPrompt, userPrompt, ac.EffectiveModel, maxTokens, reviewTemperature)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if callErr != nil {
		m := metrics()
		m.TokensUsed = &estimated
		return finding.NewFailureResult(agentID, callErr, finding.StageExec, nil, m)
	}

	findings, parseErr := parseFindings(result.text, agentID)
	m := metrics()
	tokensUsed := result.inputTokens + result.outputTokens
	m.TokensUsed = &tokensUsed
	if parseErr != nil {
		return finding.NewFailureResult(agentID, parseErr, finding.StagePostprocess, nil, m)
	}

	return finding.NewSuccessResult(agentID, findings, m)
}

func buildUserPrompt(files []finding.DiffFile, diff string) string {
	var b strings.Builder
	b.WriteString("Files changed:\n")
	for _, f := range files {
		fmt.Fprintf(&b, "- %s (+%d/-%d)\n", f.Path, f.Additions, f.Deletions)
	}
	b.WriteString("\n```diff\n")
	b.WriteString(diff)
	b.WriteString("\n```\n\n")
	b.WriteString("Respond with a single JSON object matching exactly this schema:\n")
	b.WriteString(findingsSchema)
	return b.String()
}

type wireFinding struct {
	Severity   string `json:"severity"`
	File       string `json:"file"`
	Line       int    `json:"line,omitempty"`
	Message    string `json:"message"`
	RuleID     string `json:"ruleId,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

type wireResponse struct {
	Findings []wireFinding `json:"findings"`
}

func parseFindings(raw, sourceAgent string) ([]finding.Finding, error) {
	stripped := jsonutil.StripCodeFence(raw)
	obj, err := jsonutil.ExtractJSONObject(stripped)
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
			Suggestion:  w.Suggestion,
		}
		if !f.Valid() {
			continue
		}
		f.Fingerprint = finding.Fingerprint(f.File, f.Line, f.Message, f.RuleID)
		out = append(out, f)
	}
	return out, nil
}
