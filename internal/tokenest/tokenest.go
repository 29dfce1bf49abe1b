// Package tokenest is the shared token estimator every LLM-backed agent
// and the prompt-truncation logic consult before sending a request:
// an accurate tiktoken count for recognized model families, and a
// cheap character-based estimate for everything else.
package tokenest

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// charsPerToken approximates English-prose/code token density for
// models without a known tiktoken encoding.
const charsPerToken = 4

// modelEncodings maps a model name to its tiktoken encoding. Unlisted
// models (Ollama-served local models, unreleased providers) fall back
// to the character estimate rather than failing the estimate entirely.
var modelEncodings = map[string]string{
	"gpt-4":       "cl100k_base",
	"gpt-4.1":     "cl100k_base",
	"gpt-4o":      "o200k_base",
	"gpt-4o-mini": "o200k_base",
	"o3":          "o200k_base",
	"o4-mini":     "o200k_base",
}

// Estimator counts tokens for a given model, caching tiktoken encoders
// by encoding name so repeated estimates against the same model family
// don't re-pay tiktoken's vocabulary load.
type Estimator struct {
	encoderCache sync.Map
}

// New creates an Estimator ready for concurrent use.
func New() *Estimator {
	return &Estimator{}
}

// Estimate returns the token count of text for modelName. When the
// model has a recognized tiktoken encoding, the count is exact;
// otherwise it falls back to ceil(len(text)/charsPerToken) and reports
// exact=false so callers can decide whether to log the degraded mode.
func (e *Estimator) Estimate(text, modelName string) (count int, exact bool, err error) {
	if text == "" {
		return 0, true, nil
	}

	encoding, ok := modelEncodings[modelName]
	if !ok {
		return estimateByChars(text), false, nil
	}

	enc, encErr := e.getEncoder(encoding)
	if encErr != nil {
		return estimateByChars(text), false, nil
	}

	tokens := enc.Encode(text, nil, nil)
	return len(tokens), true, nil
}

func estimateByChars(text string) int {
	n := len(text)
	return (n + charsPerToken - 1) / charsPerToken
}

func (e *Estimator) getEncoder(encoding string) (*tiktoken.Tiktoken, error) {
	if cached, ok := e.encoderCache.Load(encoding); ok {
		return cached.(*tiktoken.Tiktoken), nil
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokenest: failed to load tiktoken encoding %q: %w", encoding, err)
	}
	e.encoderCache.Store(encoding, enc)
	return enc, nil
}

// SupportsModel reports whether modelName has an exact tiktoken
// encoding registered, as opposed to falling back to the char estimate.
func SupportsModel(modelName string) bool {
	_, ok := modelEncodings[modelName]
	return ok
}
