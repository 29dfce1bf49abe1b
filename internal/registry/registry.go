// Package registry holds static metadata about the four providers the
// router resolves models against: context window size, max output
// tokens, and default generation parameters.
package registry

import (
	"fmt"
	"sort"
)

// Provider describes one supported LLM provider.
type Provider struct {
	Name    string `yaml:"name" json:"name"`
	BaseURL string `yaml:"base_url,omitempty" json:"baseUrl,omitempty"`
}

// Model describes one model's limits and default parameters.
type Model struct {
	Name            string                 `yaml:"name" json:"name"`
	Provider        string                 `yaml:"provider" json:"provider"`
	APIModelID      string                 `yaml:"api_model_id" json:"apiModelId"`
	ContextWindow   int32                  `yaml:"context_window" json:"contextWindow"`
	MaxOutputTokens int32                  `yaml:"max_output_tokens" json:"maxOutputTokens"`
	Parameters      map[string]Parameter   `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Parameter describes one model-generation parameter's type, default,
// and constraints.
type Parameter struct {
	Type       string      `yaml:"type" json:"type"`
	Default    interface{} `yaml:"default" json:"default"`
	Min        interface{} `yaml:"min,omitempty" json:"min,omitempty"`
	Max        interface{} `yaml:"max,omitempty" json:"max,omitempty"`
	EnumValues []string    `yaml:"enum_values,omitempty" json:"enumValues,omitempty"`
}

// Registry is a read-only lookup of providers and models. The zero
// value is not usable; construct with New or Default.
type Registry struct {
	providers map[string]Provider
	models    map[string]Model
}

// New builds a Registry from explicit provider and model lists,
// allowing callers (e.g. config overrides) to extend the Default set.
func New(providers []Provider, models []Model) *Registry {
	r := &Registry{providers: make(map[string]Provider), models: make(map[string]Model)}
	for _, p := range providers {
		r.providers[p.Name] = p
	}
	for _, m := range models {
		r.models[m.Name] = m
	}
	return r
}

// Provider looks up a provider definition by name.
func (r *Registry) Provider(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Model looks up a model definition by its user-facing name.
func (r *Registry) Model(name string) (Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

// DefaultModelForProvider returns the lexicographically first model
// registered under provider, giving the router a deterministic fallback
// when neither the MODEL environment variable nor the config's
// DefaultModel names one explicitly.
func (r *Registry) DefaultModelForProvider(provider string) (Model, bool) {
	var names []string
	for name, m := range r.models {
		if m.Provider == provider {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return Model{}, false
	}
	sort.Strings(names)
	return r.models[names[0]], true
}

// MustModel looks up a model, panicking if absent. It exists for use in
// package-level Default() construction where the name set is fixed.
func (r *Registry) MustModel(name string) Model {
	m, ok := r.models[name]
	if !ok {
		panic(fmt.Sprintf("registry: no such model %q", name))
	}
	return m
}

// Default returns the built-in registry covering the anthropic, openai,
// azure-openai, and ollama providers this router supports.
func Default() *Registry {
	return New(defaultProviders, defaultModels)
}

var defaultProviders = []Provider{
	{Name: "anthropic", BaseURL: "https://api.anthropic.com"},
	{Name: "openai", BaseURL: "https://api.openai.com/v1"},
	{Name: "azure-openai"},
	{Name: "ollama", BaseURL: "http://localhost:11434"},
}

var defaultModels = []Model{
	{
		Name: "claude-sonnet-4-5", Provider: "anthropic", APIModelID: "claude-sonnet-4-5",
		ContextWindow: 200000, MaxOutputTokens: 8192,
		Parameters: map[string]Parameter{
			"temperature": {Type: "float", Default: 0.2, Min: 0.0, Max: 1.0},
		},
	},
	{
		Name: "claude-haiku-4-5", Provider: "anthropic", APIModelID: "claude-haiku-4-5",
		ContextWindow: 200000, MaxOutputTokens: 8192,
		Parameters: map[string]Parameter{
			"temperature": {Type: "float", Default: 0.2, Min: 0.0, Max: 1.0},
		},
	},
	{
		Name: "gpt-4.1", Provider: "openai", APIModelID: "gpt-4.1",
		ContextWindow: 1047576, MaxOutputTokens: 32768,
		Parameters: map[string]Parameter{
			"temperature": {Type: "float", Default: 0.2, Min: 0.0, Max: 2.0},
		},
	},
	{
		Name: "gpt-4.1-mini", Provider: "openai", APIModelID: "gpt-4.1-mini",
		ContextWindow: 1047576, MaxOutputTokens: 32768,
		Parameters: map[string]Parameter{
			"temperature": {Type: "float", Default: 0.2, Min: 0.0, Max: 2.0},
		},
	},
	{
		Name: "azure-gpt-4.1", Provider: "azure-openai", APIModelID: "gpt-4.1",
		ContextWindow: 1047576, MaxOutputTokens: 32768,
		Parameters: map[string]Parameter{
			"temperature": {Type: "float", Default: 0.2, Min: 0.0, Max: 2.0},
		},
	},
	{
		Name: "codellama", Provider: "ollama", APIModelID: "codellama",
		ContextWindow: 16384, MaxOutputTokens: 4096,
	},
	{
		Name: "qwen2.5-coder", Provider: "ollama", APIModelID: "qwen2.5-coder",
		ContextWindow: 32768, MaxOutputTokens: 8192,
	},
}
