// Package apikey resolves provider API keys with a fixed precedence:
// provider-specific environment variable first, explicit parameter second.
package apikey

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/oddessentials/reviewrouter/internal/logutil"
)

// Source identifies where a resolved key came from.
type Source int

const (
	SourceNone Source = iota
	SourceEnvironment
	SourceParameter
)

// Result carries the resolved key and where it came from.
type Result struct {
	Key                 string
	Source              Source
	EnvironmentVariable string
	Provider            string
}

// Resolver resolves API keys per provider, honoring environment variables
// over explicitly supplied keys.
type Resolver struct {
	logger  logutil.LoggerInterface
	envVars map[string]string // provider -> env var name, overrides the defaults
}

// NewResolver creates a Resolver using the default env var mapping.
func NewResolver(logger logutil.LoggerInterface) *Resolver {
	return NewResolverWithEnvVars(logger, nil)
}

// NewResolverWithEnvVars creates a Resolver with a custom provider -> env
// var mapping, falling back to defaults for providers not present in it.
func NewResolverWithEnvVars(logger logutil.LoggerInterface, envVars map[string]string) *Resolver {
	if logger == nil {
		logger = logutil.New(nil, 0)
	}
	return &Resolver{logger: logger, envVars: envVars}
}

// defaultEnvVar returns the conventional environment variable name for a
// provider.
func defaultEnvVar(provider string) string {
	switch strings.ToLower(provider) {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "azure-openai", "azure_openai", "azure":
		return "AZURE_OPENAI_API_KEY"
	case "ollama":
		// Ollama's local endpoint has no key by default.
		return ""
	default:
		return strings.ToUpper(provider) + "_API_KEY"
	}
}

func (r *Resolver) envVarName(provider string) string {
	if r.envVars != nil {
		if v, ok := r.envVars[provider]; ok {
			return v
		}
	}
	return defaultEnvVar(provider)
}

// Resolve resolves the API key for provider, preferring the
// provider-specific environment variable over providedKey. It returns an
// error only when neither source yields a key and the provider requires
// one (ollama does not).
func (r *Resolver) Resolve(ctx context.Context, provider, providedKey string) (*Result, error) {
	result := &Result{Provider: provider, Source: SourceNone}

	envVar := r.envVarName(provider)
	if envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			result.Key = v
			result.Source = SourceEnvironment
			result.EnvironmentVariable = envVar
			r.logger.DebugContext(ctx, "resolved api key from environment", "provider", provider, "env_var", envVar)
			return result, nil
		}
	}

	if providedKey != "" {
		result.Key = providedKey
		result.Source = SourceParameter
		r.logger.DebugContext(ctx, "resolved api key from parameter", "provider", provider)
		return result, nil
	}

	if strings.ToLower(provider) == "ollama" {
		return result, nil
	}

	return nil, fmt.Errorf("apikey: no key found for provider %q (set %s)", provider, envVar)
}
