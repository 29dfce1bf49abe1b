// Package openai implements the review agent backed by OpenAI's and
// Azure OpenAI's chat-completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/oddessentials/reviewrouter/internal/config"
	"github.com/oddessentials/reviewrouter/internal/finding"
	"github.com/oddessentials/reviewrouter/internal/jsonutil"
	"github.com/oddessentials/reviewrouter/internal/logutil"
	"github.com/oddessentials/reviewrouter/internal/retry"
	"github.com/oddessentials/reviewrouter/internal/tokenest"
)

const (
	agentID           = "openai"
	agentName         = "OpenAI / Azure OpenAI"
	defaultMaxTokens  = 4096
	reviewTemperature = 0.3
	defaultAPIVersion = "2024-10-21"
)

const defaultSystemPrompt = `You are an automated code reviewer. Examine the supplied unified diff for ` +
	`correctness, security, and maintainability issues. Report only issues you are confident about; do ` +
	`not restate the diff or praise correct code. Respond with a single JSON object and nothing else.`

const findingsSchema = `{"findings":[{"severity":"critical|high|medium|low","file":"path/to/file","line":1,"message":"...","ruleId":"...","suggestion":"..."}]}`

type rawResult struct {
	text             string
	promptTokens     int32
	completionTokens int32
}

// api is the subset of the OpenAI SDK this agent depends on, kept
// narrow so tests can fake transport without constructing real SDK
// response types.
type api interface {
	createChatCompletion(ctx context.Context, systemPrompt, userPrompt, modelID string, maxTokens int32, temperature float64) (*rawResult, error)
}

type realAPI struct {
	client openai.Client
}

// newOpenAIAPI builds a client for api.openai.com.
func newOpenAIAPI(apiKey string) *realAPI {
	return &realAPI{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

// newAzureAPI builds a client routed through a deployment-scoped Azure
// endpoint carrying an API-version query.
func newAzureAPI(apiKey, endpoint, apiVersion string) *realAPI {
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	return &realAPI{client: openai.NewClient(
		azure.WithEndpoint(endpoint, apiVersion),
		azure.WithAPIKey(apiKey),
	)}
}

func (a *realAPI) createChatCompletion(ctx context.Context, systemPrompt, userPrompt, modelID string, maxTokens int32, temperature float64) (*rawResult, error) {
	params := openai.ChatCompletionNewParams{
		Model: modelID,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	}
	applyTokenParam(&params, modelID, maxTokens)

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &retry.ClassifiedError{Err: errors.New("no completion choices returned"), Category: retry.CategoryServerError}
	}

	return &rawResult{
		text:             completion.Choices[0].Message.Content,
		promptTokens:     int32(completion.Usage.PromptTokens),
		completionTokens: int32(completion.Usage.CompletionTokens),
	}, nil
}

// applyTokenParam picks max_tokens or max_completion_tokens depending
// on the model family — o3/o4 reasoning models reject max_tokens.
func applyTokenParam(params *openai.ChatCompletionNewParams, modelID string, maxTokens int32) {
	if strings.HasPrefix(modelID, "o3") || strings.HasPrefix(modelID, "o4") {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
		return
	}
	params.MaxTokens = openai.Int(int64(maxTokens))
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &retry.ClassifiedError{Err: err, Category: retry.CategoryCancelled}
	}

	var apiErr *openai.Error
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

// Agent reviews a diff against OpenAI or Azure OpenAI's chat-completions
// API, depending on ac.Provider.
type Agent struct {
	api       api
	logger    logutil.LoggerInterface
	estimator *tokenest.Estimator
}

// New constructs the OpenAI/Azure OpenAI agent.
func New(logger logutil.LoggerInterface) *Agent {
	return &Agent{logger: logger, estimator: tokenest.New()}
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

	providerName := "openai"
	keyVar := "OPENAI_API_KEY"
	if ac.Provider == finding.ProviderAzureOpenAI {
		providerName = "azure-openai"
		keyVar = "AZURE_OPENAI_API_KEY"
	}

	key := ac.Env[keyVar]
	if key == "" {
		return finding.NewSkippedResult(agentID, fmt.Sprintf("no API key configured for %s", providerName), metrics())
	}

	apiClient := a.api
	if apiClient == nil {
		if ac.Provider == finding.ProviderAzureOpenAI {
			endpoint := ac.Env["AZURE_OPENAI_ENDPOINT"]
			deployment := ac.Env["AZURE_OPENAI_DEPLOYMENT"]
			if endpoint == "" || deployment == "" {
				return finding.NewSkippedResult(agentID, "AZURE_OPENAI_ENDPOINT/AZURE_OPENAI_DEPLOYMENT not set", metrics())
			}
			apiClient = newAzureAPI(key, endpoint, "")
		} else {
			apiClient = newOpenAIAPI(key)
		}
	}

	maxTokens := int32(defaultMaxTokens)
	if cfg, ok := ac.Config.(*config.Config); ok && cfg.Limits.MaxCompletionTokens > 0 {
		maxTokens = int32(cfg.Limits.MaxCompletionTokens)
	}

	userPrompt := buildUserPrompt(ac.Files, ac.DiffContent)
	tokenCount, _, _ := a.estimator.Estimate(defaultSystemPrompt+userPrompt, ac.EffectiveModel)
	estimated := int32(tokenCount)

	modelID := ac.EffectiveModel
	if ac.Provider == finding.ProviderAzureOpenAI {
		modelID = ac.Env["AZURE_OPENAI_DEPLOYMENT"]
	}

	var result *rawResult
	callErr := retry.Do(ctx, func(attempt int) error {
		r, err := apiClient.createChatCompletion(ctx, defaultSystemPrompt, userPrompt, modelID, maxTokens, reviewTemperature)
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
	tokensUsed := result.promptTokens + result.completionTokens
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
