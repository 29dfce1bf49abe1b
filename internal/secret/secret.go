// Package secret strips forge credentials from a per-agent environment
// and redacts source-control secrets from diff text before it reaches
// an LLM or a subprocess.
package secret

import (
	"regexp"
	"strings"
	"time"

	"github.com/oddessentials/reviewrouter/internal/regexsafe"
)

// explicitTokenNames are stripped from every agent environment
// regardless of whether they match the *_TOKEN/*_PAT glob.
var explicitTokenNames = map[string]bool{
	"GITHUB_TOKEN":             true,
	"GH_TOKEN":                 true,
	"AZURE_DEVOPS_PAT":         true,
	"SYSTEM_ACCESSTOKEN":       true,
	"REVIEWDOG_GITHUB_API_TOKEN": true,
}

// IsForgeToken reports whether an environment variable name must be
// stripped before any agent runs: an explicit known name, or anything
// matching *_TOKEN / *_PAT.
func IsForgeToken(name string) bool {
	if explicitTokenNames[name] {
		return true
	}
	upper := strings.ToUpper(name)
	return strings.HasSuffix(upper, "_TOKEN") || strings.HasSuffix(upper, "_PAT")
}

// StripForgeTokens returns a copy of env with every forge token
// variable removed. The router retains the originals in its own scope;
// this function is applied only to the per-agent copy.
func StripForgeTokens(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		if IsForgeToken(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// HardeningDefaults returns the fixed set of environment overlays every
// agent environment receives regardless of what the process environment
// contains: disabled color output, a UTF-8 locale, a writable HOME, and
// PYTHONUTF8 (harmless for non-Python subprocesses). PATH is not set here.
func HardeningDefaults(homeDir string) map[string]string {
	return map[string]string{
		"NO_COLOR":    "1",
		"LANG":        "C.UTF-8",
		"LC_ALL":      "C.UTF-8",
		"HOME":        homeDir,
		"PYTHONUTF8":  "1",
	}
}

const redactedPlaceholder = "[REDACTED]"

// diffRedactionPattern names one regex applied to diff text before it is
// sent to an LLM, evaluated through the timeout-guarded regex.
type diffRedactionPattern struct {
	name    string
	pattern string
}

var diffPatterns = []diffRedactionPattern{
	{"github-classic-pat", `ghp_[A-Za-z0-9]{36}`},
	{"github-oauth", `gho_[A-Za-z0-9]{36}`},
	{"github-server", `ghs_[A-Za-z0-9]{36}`},
	{"github-fine-grained-pat", `github_pat_[A-Za-z0-9_]{82}`},
	{"github-token-assignment", `GITHUB_TOKEN=\S+`},
	{"gh-token-assignment", `GH_TOKEN=\S+`},
	{"authorization-bearer", `(?i)Authorization:\s*Bearer\s+\S+`},
}

// Redactor applies the diff secret-redaction corpus. It is built once
// and reused across runs; its regexes are evaluated through
// regexsafe.TimeoutRegex so a pathological diff body cannot stall
// redaction.
type Redactor struct {
	compiled []compiledPattern
}

type compiledPattern struct {
	name string
	re   *regexp.Regexp
	safe *regexsafe.TimeoutRegex
}

// NewRedactor compiles the fixed diff-content secret corpus.
func NewRedactor() *Redactor {
	r := &Redactor{}
	for _, p := range diffPatterns {
		re := regexp.MustCompile(p.pattern)
		safe, err := regexsafe.New(p.pattern, 100*time.Millisecond)
		if err != nil {
			// The fixed corpus is known-safe at authoring time; a
			// compile failure here would be a programming error.
			panic("secret: fixed pattern failed to compile: " + p.pattern)
		}
		r.compiled = append(r.compiled, compiledPattern{name: p.name, re: re, safe: safe})
	}
	return r
}

// RedactDiff replaces every match of the secret corpus in text with
// [REDACTED]. The whole text is scanned with the raw matcher (bounded
// corpus, not attacker-supplied patterns), so the MaxInputLen bound on
// the timeout regex does not skip redaction on long diffs; each
// candidate span is re-validated through the timeout-guarded regex
// before being counted as a real match.
func (r *Redactor) RedactDiff(text string) string {
	out := text
	for _, cp := range r.compiled {
		out = cp.re.ReplaceAllStringFunc(out, func(match string) string {
			if cp.safe.MatchString(match).Matched {
				return redactedPlaceholder
			}
			return match
		})
	}
	return out
}
