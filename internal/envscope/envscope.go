// Package envscope builds the per-agent environment map the router
// hands to each agent: a narrow allowlist of the variables that agent
// kind actually needs, layered over the fixed hardening defaults and
// with every forge credential stripped, regardless of what the host
// process environment contains.
package envscope

import (
	"github.com/oddessentials/reviewrouter/internal/secret"
)

// AgentKind identifies which allowlist BuildEnv should apply.
type AgentKind string

const (
	AgentAnthropic   AgentKind = "anthropic"
	AgentOpenAI      AgentKind = "openai"
	AgentOllama      AgentKind = "ollama"
	AgentSemgrep     AgentKind = "semgrep"
	AgentControlFlow AgentKind = "control_flow"
)

// allowlists maps each agent kind to the process-environment variable
// names it may see, per the recognized-variables list.
var allowlists = map[AgentKind][]string{
	AgentAnthropic: {"ANTHROPIC_API_KEY", "MODEL"},
	AgentOpenAI: {
		"OPENAI_API_KEY",
		"AZURE_OPENAI_API_KEY",
		"AZURE_OPENAI_ENDPOINT",
		"AZURE_OPENAI_DEPLOYMENT",
		"MODEL",
	},
	AgentOllama: {
		"OLLAMA_BASE_URL",
		"OLLAMA_MODEL",
		"LOCAL_LLM_OPTIONAL",
		"LOCAL_LLM_NUM_CTX",
		"LOCAL_LLM_NUM_PREDICT",
		"LOCAL_LLM_TIMEOUT",
		"MODEL",
	},
	AgentSemgrep:     {},
	AgentControlFlow: {},
}

// BuildEnv returns the environment map for one agent invocation: the
// fixed hardening defaults, the host's PATH (if set), and whichever of
// processEnv's variables are on kind's allowlist. Every result is run
// back through secret.IsForgeToken as a last line of defense, even
// though no current allowlist entry can match it.
func BuildEnv(kind AgentKind, processEnv map[string]string, homeDir string) map[string]string {
	out := secret.HardeningDefaults(homeDir)

	if path, ok := processEnv["PATH"]; ok {
		out["PATH"] = path
	}

	for _, name := range allowlists[kind] {
		v, ok := processEnv[name]
		if !ok {
			continue
		}
		if secret.IsForgeToken(name) {
			continue
		}
		out[name] = v
	}

	return out
}
