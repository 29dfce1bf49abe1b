package pathanalysis

import (
	"sort"

	"github.com/oddessentials/reviewrouter/internal/cfgmodel"
)

// Status is the mitigation-coverage verdict for a sink's path set.
type Status string

const (
	StatusFull    Status = "full"
	StatusPartial Status = "partial"
	StatusNone    Status = "none"
)

// CoverageResult is the outcome of AnalyzeCoverage.
type CoverageResult struct {
	Unreachable         bool
	Status              Status
	PathsTotal          int
	PathsCovered        int
	CoveragePercent     float64
	UnprotectedPaths    []Path
	MitigationsDetected []string
	Degraded            bool
	DegradedReason      string
}

// AnalyzeCoverage enumerates every path from g.Entry to sink (bounded by
// bounds) and classifies each as mitigated or not: a path is mitigated
// iff it visits at least one node present in mitigatingNodes, a map the
// caller builds by cross-referencing mitigation instances (filtered to
// the vulnerability type under analysis) against this graph's node
// lines. When sink is unreachable, Unreachable is set and every other
// field is zero value — callers must skip finding generation in that
// case. When crossFunctionAsync is true and coverage would otherwise be
// full, the result is downgraded to partial per the conservative
// cross-function-await fallback.
func AnalyzeCoverage(g *cfgmodel.Graph, sink cfgmodel.NodeID, mitigatingNodes map[cfgmodel.NodeID][]string, bounds Bounds, crossFunctionAsync bool) CoverageResult {
	reachable := Reachable(g)
	if !reachable[sink] {
		return CoverageResult{Unreachable: true}
	}

	enum := EnumeratePaths(g, sink, bounds)
	result := CoverageResult{
		Degraded:       enum.Degraded,
		DegradedReason: enum.DegradedReason,
		PathsTotal:     len(enum.Paths),
	}

	detected := map[string]bool{}
	for _, path := range enum.Paths {
		covered := false
		for _, id := range path {
			ids, ok := mitigatingNodes[id]
			if !ok || len(ids) == 0 {
				continue
			}
			covered = true
			for _, pid := range ids {
				detected[pid] = true
			}
		}
		if covered {
			result.PathsCovered++
		} else {
			result.UnprotectedPaths = append(result.UnprotectedPaths, path)
		}
	}

	for pid := range detected {
		result.MitigationsDetected = append(result.MitigationsDetected, pid)
	}
	sort.Strings(result.MitigationsDetected)

	switch {
	case result.PathsTotal == 0 || result.PathsCovered == 0:
		result.Status = StatusNone
	case result.PathsCovered == result.PathsTotal:
		result.Status = StatusFull
	default:
		result.Status = StatusPartial
	}

	if result.PathsTotal > 0 {
		result.CoveragePercent = float64(result.PathsCovered) / float64(result.PathsTotal) * 100
	}

	if result.Status == StatusFull && crossFunctionAsync {
		result.Status = StatusPartial
		result.Degraded = true
		result.DegradedReason = "Cross-function async; conservative fallback"
	}

	return result
}
