// Package findinggen turns a detected vulnerability and its mitigation
// coverage analysis into the uniform finding record the router expects,
// applying the suppression and severity-downgrade rules that make the
// control-flow engine mitigation-aware rather than a bare sink scanner.
package findinggen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oddessentials/reviewrouter/internal/cfgmodel"
	"github.com/oddessentials/reviewrouter/internal/finding"
	"github.com/oddessentials/reviewrouter/internal/pathanalysis"
)

// Vulnerability is a single potential issue the control-flow engine's
// sink catalog flagged, awaiting mitigation-aware finding generation.
type Vulnerability struct {
	ID                  string
	Type                string
	File                string
	SinkLine            int
	AffectedVariable    string
	RequiredMitigations []string
	Description         string
}

// Config bounds finding generation: the configured call-depth budget
// recorded in every finding's metadata.
type Config struct {
	AnalysisDepth int
}

// Generate applies the suppression, severity-downgrade, message, and
// suggestion rules to vuln given its coverage analysis, returning nil
// when the finding should be suppressed (full coverage with no
// cross-function-async downgrade, or an unreachable sink). graph is the
// CFG cov was computed against, needed to render unprotected-path
// signatures. crossFileDescriptors, if non-empty, is recorded as a
// cross-file mitigation descriptor in metadata.
func Generate(vuln Vulnerability, cov pathanalysis.CoverageResult, graph *cfgmodel.Graph, cfg Config, crossFileDescriptors []string) *finding.Finding {
	if cov.Unreachable {
		return nil
	}
	if cov.Status == pathanalysis.StatusFull {
		return nil
	}

	baseSeverity := baseSeverityForType(vuln.Type)
	severity, downgraded := downgradeSeverity(baseSeverity, cov.CoveragePercent, cov.Status)

	message := buildMessage(vuln, cov)
	suggestion := buildSuggestion(vuln, cov, graph)

	metadata := map[string]interface{}{
		"mitigationStatus":    string(cov.Status),
		"pathsCovered":        cov.PathsCovered,
		"pathsTotal":          cov.PathsTotal,
		"mitigationsDetected": cov.MitigationsDetected,
		"analysisDepth":       cfg.AnalysisDepth,
		"degraded":            cov.Degraded,
	}
	if cov.Degraded && cov.DegradedReason != "" {
		metadata["degradedReason"] = cov.DegradedReason
	}
	if len(cov.UnprotectedPaths) > 0 {
		sigs := make([]string, 0, len(cov.UnprotectedPaths))
		for _, p := range cov.UnprotectedPaths {
			sigs = append(sigs, p.Signature(graph))
		}
		metadata["unprotectedPaths"] = sigs
	}
	if downgraded {
		metadata["originalSeverity"] = baseSeverity.String()
	}
	if len(crossFileDescriptors) > 0 {
		metadata["crossFileMitigations"] = crossFileDescriptors
	}

	ruleID := fmt.Sprintf("cfa/%s", vuln.Type)
	f := &finding.Finding{
		Severity:    severity,
		File:        vuln.File,
		Line:        vuln.SinkLine,
		Message:     message,
		SourceAgent: "control_flow",
		Suggestion:  suggestion,
		RuleID:      ruleID,
		Fingerprint: finding.Fingerprint(vuln.File, vuln.SinkLine, vuln.AffectedVariable, ruleID),
		Metadata:    metadata,
	}
	f.Normalize()
	return f
}

func baseSeverityForType(vulnType string) finding.Severity {
	switch vulnType {
	case "injection", "auth_bypass", "xss", "path_traversal", "prototype_pollution", "ssrf":
		return finding.SeverityError
	case "null_deref":
		return finding.SeverityWarning
	default:
		return finding.SeverityInfo
	}
}

// downgradeSeverity applies the coverage-percent downgrade ladder: below
// 50% no change, [50,75) one level down, >=75% two levels down clamped
// to info. The none status never reaches here with any coverage, but a
// zero-percent partial (shouldn't occur given Generate's full-status
// short-circuit) is treated the same as no downgrade.
func downgradeSeverity(base finding.Severity, coveragePercent float64, status pathanalysis.Status) (finding.Severity, bool) {
	if status == pathanalysis.StatusNone {
		return base, false
	}
	switch {
	case coveragePercent >= 75:
		return clampSeverity(base + 2), true
	case coveragePercent >= 50:
		return clampSeverity(base + 1), true
	default:
		return base, false
	}
}

func clampSeverity(s finding.Severity) finding.Severity {
	if s > finding.SeverityInfo {
		return finding.SeverityInfo
	}
	return s
}

func buildMessage(vuln Vulnerability, cov pathanalysis.CoverageResult) string {
	var b strings.Builder
	b.WriteString(vuln.Description)
	switch cov.Status {
	case pathanalysis.StatusNone:
		b.WriteString(" No mitigations detected.")
	case pathanalysis.StatusPartial:
		unprotected := cov.PathsTotal - cov.PathsCovered
		fmt.Fprintf(&b, " Partial mitigation detected (%d of %d paths, %.0f%%). %d path(s) protected; %d path(s) remain unprotected.",
			cov.PathsCovered, cov.PathsTotal, cov.CoveragePercent, cov.PathsCovered, unprotected)
	}
	return b.String()
}

func buildSuggestion(vuln Vulnerability, cov pathanalysis.CoverageResult, graph *cfgmodel.Graph) string {
	if cov.Status == pathanalysis.StatusPartial && len(cov.UnprotectedPaths) > 0 {
		const maxListed = 3
		sigs := make([]string, 0, len(cov.UnprotectedPaths))
		for _, p := range cov.UnprotectedPaths {
			sigs = append(sigs, p.Signature(graph))
		}
		sort.Strings(sigs)
		if len(sigs) > maxListed {
			sigs = append(sigs[:maxListed], "…")
		}
		return "Unprotected paths: " + strings.Join(sigs, "; ")
	}
	return cannedSuggestion(vuln.Type)
}

func cannedSuggestion(vulnType string) string {
	switch vulnType {
	case "injection":
		return "Use parameterized queries or a query builder instead of string-concatenated input."
	case "xss":
		return "Sanitize output with a DOMPurify-class sanitizer before rendering into HTML."
	case "path_traversal":
		return "Resolve the path and confirm it stays within the intended root via a basename/containment check."
	case "auth_bypass":
		return "Require an explicit authentication or authorization check before this operation."
	case "null_deref":
		return "Guard against a missing value before dereferencing it."
	case "prototype_pollution":
		return "Validate object keys and avoid unguarded recursive merges of untrusted input."
	case "ssrf":
		return "Validate and allowlist the target host before issuing the outbound request."
	default:
		return "Add a mitigation appropriate to this vulnerability class."
	}
}
