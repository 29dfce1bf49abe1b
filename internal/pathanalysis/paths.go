package pathanalysis

import (
	"fmt"
	"strings"

	"github.com/oddessentials/reviewrouter/internal/cfgmodel"
)

// Path is a sequence of node ids from a graph's entry to a sink.
type Path []cfgmodel.NodeID

// Bounds caps path enumeration so a pathological CFG (deep recursion-free
// but heavily branching code) cannot make analysis run unbounded.
type Bounds struct {
	MaxPaths      int
	MaxPathLength int
}

// DefaultBounds matches the analysis budget's defaults for an
// agent-configurable enumeration limit.
var DefaultBounds = Bounds{MaxPaths: 500, MaxPathLength: 200}

// EnumerationResult is the outcome of bounded DFS path enumeration.
type EnumerationResult struct {
	Paths          []Path
	Degraded       bool
	DegradedReason string
}

// EnumeratePaths runs a DFS from g.Entry to sink, cycle-detected by a
// visited set scoped to the current path (so a loop body is revisited
// across different paths but never twice within one). When either bound
// is hit, the result is marked degraded and the partial path set found
// so far is retained.
func EnumeratePaths(g *cfgmodel.Graph, sink cfgmodel.NodeID, bounds Bounds) EnumerationResult {
	if bounds.MaxPaths <= 0 {
		bounds.MaxPaths = DefaultBounds.MaxPaths
	}
	if bounds.MaxPathLength <= 0 {
		bounds.MaxPathLength = DefaultBounds.MaxPathLength
	}

	res := EnumerationResult{}
	onPath := map[cfgmodel.NodeID]bool{}
	var current Path

	var visit func(node cfgmodel.NodeID) bool // returns true to keep searching
	visit = func(node cfgmodel.NodeID) bool {
		if len(res.Paths) >= bounds.MaxPaths {
			res.Degraded = true
			res.DegradedReason = "maxPaths reached"
			return false
		}
		if len(current) >= bounds.MaxPathLength {
			res.Degraded = true
			res.DegradedReason = "maxPathLength reached"
			return true
		}
		if onPath[node] {
			return true // cycle; stop descending this branch
		}

		onPath[node] = true
		current = append(current, node)

		if node == sink {
			found := make(Path, len(current))
			copy(found, current)
			res.Paths = append(res.Paths, found)
		} else {
			for _, e := range g.Successors(node) {
				if !visit(e.To) {
					onPath[node] = false
					current = current[:len(current)-1]
					return false
				}
			}
		}

		onPath[node] = false
		current = current[:len(current)-1]
		return true
	}

	visit(g.Entry)
	return res
}

// Signature renders a path as a compact, human-readable string of
// kind(line) hops, suitable as an "unprotected path" descriptor in a
// finding's suggestion text.
func (p Path) Signature(g *cfgmodel.Graph) string {
	var b strings.Builder
	for i, id := range p {
		n := g.Node(id)
		if i > 0 {
			b.WriteString(" -> ")
		}
		fmt.Fprintf(&b, "%s(%d)", n.Kind, n.Line)
	}
	return b.String()
}
