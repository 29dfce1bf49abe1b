// Package finding defines the canonical records every review agent
// produces and the router consumes: findings, per-agent metrics, and the
// discriminated success/failure/skipped result variant.
package finding

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SchemaVersion is the cache compatibility tag for AgentResult. Bumping it
// invalidates every previously cached entry.
const SchemaVersion = 2

// Severity orders findings for sort precedence: error < warning < info.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// ParseSeverity maps the lower-case wire form back to a Severity. Unknown
// values fall through to SeverityInfo.
func ParseSeverity(s string) Severity {
	switch s {
	case "error", "critical", "high":
		return SeverityError
	case "warning", "medium":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Provenance marks whether a finding came from a complete agent run or the
// partial output of a failed one.
type Provenance string

const (
	ProvenanceComplete Provenance = "complete"
	ProvenancePartial  Provenance = "partial"
)

// Finding is the uniform record every agent emits.
type Finding struct {
	Severity    Severity               `json:"severity"`
	File        string                 `json:"file"`
	Message     string                 `json:"message"`
	SourceAgent string                 `json:"sourceAgent"`
	Line        int                    `json:"line,omitempty"`
	EndLine     int                    `json:"endLine,omitempty"`
	Suggestion  string                 `json:"suggestion,omitempty"`
	RuleID      string                 `json:"ruleId,omitempty"`
	Fingerprint string                 `json:"fingerprint,omitempty"`
	Provenance  Provenance             `json:"provenance,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Normalize fills in field defaults: a missing Provenance defaults to
// "complete".
func (f *Finding) Normalize() {
	if f.Provenance == "" {
		f.Provenance = ProvenanceComplete
	}
}

// Valid reports whether the finding satisfies the invariants every
// finding must hold: non-empty file/message/sourceAgent, and
// endLine >= line when both are present.
func (f *Finding) Valid() bool {
	if f.File == "" || f.Message == "" || f.SourceAgent == "" {
		return false
	}
	if f.EndLine != 0 && f.Line != 0 && f.EndLine < f.Line {
		return false
	}
	return true
}

// Fingerprint computes the 16-hex stable hash of file|line|message|ruleId.
func Fingerprint(file string, line int, message, ruleID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%s", file, line, message, ruleID)))
	return hex.EncodeToString(sum[:])[:16]
}

// AgentMetrics reports resource usage for a single agent run.
type AgentMetrics struct {
	DurationMs       int64  `json:"durationMs"`
	FilesProcessed   int    `json:"filesProcessed"`
	TokensUsed       *int32 `json:"tokensUsed,omitempty"`
	EstimatedCostUSD *float64 `json:"estimatedCostUsd,omitempty"`
}

// FailureStage identifies where in an agent's run a failure occurred.
type FailureStage string

const (
	StagePreflight   FailureStage = "preflight"
	StageExec        FailureStage = "exec"
	StagePostprocess FailureStage = "postprocess"
)

// Kind discriminates the AgentResult variant.
type Kind int

const (
	KindSuccess Kind = iota
	KindFailure
	KindSkipped
)

// AgentResult is the tagged union of a single agent run's outcome. It is
// constructed exclusively through NewSuccessResult / NewFailureResult /
// NewSkippedResult so "mutually exclusive fields, no other combinations
// permitted" is enforced by construction rather than convention.
type AgentResult struct {
	kind          Kind
	schemaVersion int

	// success
	agentID  string
	findings []Finding
	metrics  AgentMetrics

	// failure
	failErr          string
	failureStage     FailureStage
	partialFindings  []Finding

	// skipped
	skipReason string
}

// NewSuccessResult builds the success variant. findings may be empty.
func NewSuccessResult(agentID string, findings []Finding, metrics AgentMetrics) AgentResult {
	normalized := make([]Finding, len(findings))
	for i, f := range findings {
		f.Normalize()
		normalized[i] = f
	}
	return AgentResult{
		kind:          KindSuccess,
		schemaVersion: SchemaVersion,
		agentID:       agentID,
		findings:      normalized,
		metrics:       metrics,
	}
}

// NewFailureResult builds the failure variant. partialFindings are
// re-labeled provenance=partial.
func NewFailureResult(agentID string, err error, stage FailureStage, partialFindings []Finding, metrics AgentMetrics) AgentResult {
	normalized := make([]Finding, len(partialFindings))
	for i, f := range partialFindings {
		f.Provenance = ProvenancePartial
		normalized[i] = f
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return AgentResult{
		kind:            KindFailure,
		schemaVersion:   SchemaVersion,
		agentID:         agentID,
		failErr:         msg,
		failureStage:    stage,
		partialFindings: normalized,
		metrics:         metrics,
	}
}

// NewSkippedResult builds the skipped variant.
func NewSkippedResult(agentID, reason string, metrics AgentMetrics) AgentResult {
	return AgentResult{
		kind:          KindSkipped,
		schemaVersion: SchemaVersion,
		agentID:       agentID,
		skipReason:    reason,
		metrics:       metrics,
	}
}

// Kind returns the variant discriminant.
func (r AgentResult) Kind() Kind { return r.kind }

// SchemaVersion returns the schema version tagged on this result.
func (r AgentResult) SchemaVersion() int { return r.schemaVersion }

// AgentID returns the producing agent's id, valid for every variant.
func (r AgentResult) AgentID() string { return r.agentID }

// Metrics returns the per-run metrics, valid for every variant.
func (r AgentResult) Metrics() AgentMetrics { return r.metrics }

// Findings returns the success-variant findings, or nil otherwise.
func (r AgentResult) Findings() []Finding {
	if r.kind != KindSuccess {
		return nil
	}
	return r.findings
}

// Error returns the failure-variant error message, or "" otherwise.
func (r AgentResult) Error() string {
	if r.kind != KindFailure {
		return ""
	}
	return r.failErr
}

// FailureStage returns the failure-variant stage, or "" otherwise.
func (r AgentResult) FailureStage() FailureStage {
	if r.kind != KindFailure {
		return ""
	}
	return r.failureStage
}

// PartialFindings returns the failure-variant partial findings, or nil otherwise.
func (r AgentResult) PartialFindings() []Finding {
	if r.kind != KindFailure {
		return nil
	}
	return r.partialFindings
}

// SkipReason returns the skipped-variant reason, or "" otherwise.
func (r AgentResult) SkipReason() string {
	if r.kind != KindSkipped {
		return ""
	}
	return r.skipReason
}

// agentResultWire is AgentResult's JSON wire form, used by the cache
// layer to persist and restore results across process boundaries
// without exposing the variant's private fields as part of its API.
type agentResultWire struct {
	Kind            Kind         `json:"kind"`
	SchemaVersion   int          `json:"schemaVersion"`
	AgentID         string       `json:"agentId"`
	Findings        []Finding    `json:"findings,omitempty"`
	Metrics         AgentMetrics `json:"metrics"`
	FailErr         string       `json:"failErr,omitempty"`
	FailureStage    FailureStage `json:"failureStage,omitempty"`
	PartialFindings []Finding    `json:"partialFindings,omitempty"`
	SkipReason      string       `json:"skipReason,omitempty"`
}

// MarshalJSON implements json.Marshaler so AgentResult can round-trip
// through a cache entry.
func (r AgentResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(agentResultWire{
		Kind:            r.kind,
		SchemaVersion:   r.schemaVersion,
		AgentID:         r.agentID,
		Findings:        r.findings,
		Metrics:         r.metrics,
		FailErr:         r.failErr,
		FailureStage:    r.failureStage,
		PartialFindings: r.partialFindings,
		SkipReason:      r.skipReason,
	})
}

// UnmarshalJSON implements json.Unmarshaler, the inverse of MarshalJSON.
func (r *AgentResult) UnmarshalJSON(data []byte) error {
	var w agentResultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.kind = w.Kind
	r.schemaVersion = w.SchemaVersion
	r.agentID = w.AgentID
	r.findings = w.Findings
	r.metrics = w.Metrics
	r.failErr = w.FailErr
	r.failureStage = w.FailureStage
	r.partialFindings = w.PartialFindings
	r.skipReason = w.SkipReason
	return nil
}

// FileStatus enumerates DiffFile.Status values.
type FileStatus string

const (
	StatusAdded    FileStatus = "added"
	StatusModified FileStatus = "modified"
	StatusRenamed  FileStatus = "renamed"
	StatusDeleted  FileStatus = "deleted"
)

// DiffFile describes one file touched by the diff under review.
type DiffFile struct {
	Path      string     `json:"path"`
	Status    FileStatus `json:"status"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
}

// Provider enumerates the LLM providers the router can resolve.
type Provider string

const (
	ProviderAnthropic   Provider = "anthropic"
	ProviderOpenAI      Provider = "openai"
	ProviderAzureOpenAI Provider = "azure-openai"
	ProviderOllama      Provider = "ollama"
	ProviderNone        Provider = "null"
)

// AgentContext carries everything a single agent run needs. Agents MUST
// use EffectiveModel/Provider as resolved by the router; no agent
// re-resolves a provider.
type AgentContext struct {
	RepoPath       string
	Files          []DiffFile
	DiffContent    string
	Config         interface{}
	Env            map[string]string
	EffectiveModel string
	Provider       Provider
}
