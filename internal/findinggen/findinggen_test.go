package findinggen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddessentials/reviewrouter/internal/cfgmodel"
	"github.com/oddessentials/reviewrouter/internal/finding"
	"github.com/oddessentials/reviewrouter/internal/pathanalysis"
)

func simpleGraph() *cfgmodel.Graph {
	g := &cfgmodel.Graph{}
	entry := g.AddNode(cfgmodel.NodeEntry, 1)
	sink := g.AddNode(cfgmodel.NodeBasic, 10)
	g.Entry = entry.ID
	g.Exits = []cfgmodel.NodeID{sink.ID}
	g.AddEdge(entry.ID, sink.ID, cfgmodel.EdgeFlow)
	return g
}

func injectionVuln() Vulnerability {
	return Vulnerability{
		ID:               "vuln-1",
		Type:             "injection",
		File:             "src/db/query.ts",
		SinkLine:         42,
		AffectedVariable: "userId",
		Description:      "Unsanitized input reaches a SQL query.",
	}
}

func TestGenerateSuppressesFindingOnFullCoverage(t *testing.T) {
	cov := pathanalysis.CoverageResult{Status: pathanalysis.StatusFull, PathsTotal: 2, PathsCovered: 2, CoveragePercent: 100}
	f := Generate(injectionVuln(), cov, simpleGraph(), Config{AnalysisDepth: 3}, nil)
	assert.Nil(t, f)
}

func TestGenerateSuppressesFindingOnUnreachableSink(t *testing.T) {
	cov := pathanalysis.CoverageResult{Unreachable: true}
	f := Generate(injectionVuln(), cov, simpleGraph(), Config{}, nil)
	assert.Nil(t, f)
}

func TestGeneratePartialCoverageDowngradesToInfoAtSeventyFivePercent(t *testing.T) {
	cov := pathanalysis.CoverageResult{
		Status:          pathanalysis.StatusPartial,
		PathsTotal:      4,
		PathsCovered:    3,
		CoveragePercent: 75,
	}
	f := Generate(injectionVuln(), cov, simpleGraph(), Config{AnalysisDepth: 3}, nil)
	require.NotNil(t, f)
	assert.Equal(t, finding.SeverityInfo, f.Severity)
	assert.Contains(t, f.Message, "3 of 4 paths")
	assert.Contains(t, f.Message, "75%")
	assert.Equal(t, "error", f.Metadata["originalSeverity"])
}

func TestGeneratePartialCoverageBelowFiftyPercentNoDowngrade(t *testing.T) {
	cov := pathanalysis.CoverageResult{
		Status:          pathanalysis.StatusPartial,
		PathsTotal:      4,
		PathsCovered:    1,
		CoveragePercent: 25,
	}
	f := Generate(injectionVuln(), cov, simpleGraph(), Config{}, nil)
	require.NotNil(t, f)
	assert.Equal(t, finding.SeverityError, f.Severity)
	_, hasOriginal := f.Metadata["originalSeverity"]
	assert.False(t, hasOriginal)
}

func TestGenerateNoneStatusMessageSaysNoMitigationsDetected(t *testing.T) {
	cov := pathanalysis.CoverageResult{Status: pathanalysis.StatusNone, PathsTotal: 2, PathsCovered: 0}
	f := Generate(injectionVuln(), cov, simpleGraph(), Config{}, nil)
	require.NotNil(t, f)
	assert.Contains(t, f.Message, "No mitigations detected.")
	assert.Equal(t, finding.SeverityError, f.Severity)
}

func TestGenerateCrossFunctionAsyncDowngradeRecordsDegradedReason(t *testing.T) {
	cov := pathanalysis.CoverageResult{
		Status:          pathanalysis.StatusPartial,
		PathsTotal:      4,
		PathsCovered:    4,
		CoveragePercent: 100,
		Degraded:        true,
		DegradedReason:  "Cross-function async; conservative fallback",
	}
	f := Generate(injectionVuln(), cov, simpleGraph(), Config{}, nil)
	require.NotNil(t, f)
	assert.Equal(t, "Cross-function async; conservative fallback", f.Metadata["degradedReason"])
	assert.True(t, f.Metadata["degraded"].(bool))
}

func TestGenerateFingerprintIsStableAcrossCalls(t *testing.T) {
	cov := pathanalysis.CoverageResult{Status: pathanalysis.StatusNone}
	a := Generate(injectionVuln(), cov, simpleGraph(), Config{}, nil)
	b := Generate(injectionVuln(), cov, simpleGraph(), Config{}, nil)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Len(t, a.Fingerprint, 16)
}

func TestGenerateRuleIDAndSourceAgent(t *testing.T) {
	cov := pathanalysis.CoverageResult{Status: pathanalysis.StatusNone}
	f := Generate(injectionVuln(), cov, simpleGraph(), Config{}, nil)
	require.NotNil(t, f)
	assert.Equal(t, "cfa/injection", f.RuleID)
	assert.Equal(t, "control_flow", f.SourceAgent)
}

func TestBaseSeverityByVulnerabilityType(t *testing.T) {
	assert.Equal(t, finding.SeverityError, baseSeverityForType("injection"))
	assert.Equal(t, finding.SeverityError, baseSeverityForType("ssrf"))
	assert.Equal(t, finding.SeverityWarning, baseSeverityForType("null_deref"))
	assert.Equal(t, finding.SeverityInfo, baseSeverityForType("unknown_type"))
}

func TestGenerateSuggestionUsesUnprotectedPathsWhenPartial(t *testing.T) {
	g := &cfgmodel.Graph{}
	entry := g.AddNode(cfgmodel.NodeEntry, 1)
	sink := g.AddNode(cfgmodel.NodeBasic, 10)
	g.Entry = entry.ID
	path := pathanalysis.Path{entry.ID, sink.ID}

	cov := pathanalysis.CoverageResult{
		Status:           pathanalysis.StatusPartial,
		PathsTotal:       2,
		PathsCovered:     1,
		CoveragePercent:  50,
		UnprotectedPaths: []pathanalysis.Path{path},
	}
	f := Generate(injectionVuln(), cov, g, Config{}, nil)
	require.NotNil(t, f)
	assert.Contains(t, f.Suggestion, "Unprotected paths:")
}

func TestGenerateCanneSuggestionWhenStatusNone(t *testing.T) {
	cov := pathanalysis.CoverageResult{Status: pathanalysis.StatusNone}
	f := Generate(injectionVuln(), cov, simpleGraph(), Config{}, nil)
	require.NotNil(t, f)
	assert.Contains(t, f.Suggestion, "parameterized queries")
}

func TestGenerateRecordsCrossFileDescriptors(t *testing.T) {
	cov := pathanalysis.CoverageResult{Status: pathanalysis.StatusNone}
	f := Generate(injectionVuln(), cov, simpleGraph(), Config{}, []string{"src/lib/guard.ts:validateInput"})
	require.NotNil(t, f)
	assert.Equal(t, []string{"src/lib/guard.ts:validateInput"}, f.Metadata["crossFileMitigations"])
}
