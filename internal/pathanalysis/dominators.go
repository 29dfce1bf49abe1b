package pathanalysis

import "github.com/oddessentials/reviewrouter/internal/cfgmodel"

// Dominators computes, for every node reachable from g.Entry, the set of
// nodes that dominate it: iteratively intersecting each node's
// predecessors' dominator sets (seeded to "everything") until fixed
// point, per the standard data-flow formulation. Entry dominates only
// itself.
func Dominators(g *cfgmodel.Graph) map[cfgmodel.NodeID]map[cfgmodel.NodeID]bool {
	reachable := Reachable(g)

	all := map[cfgmodel.NodeID]bool{}
	for id := range reachable {
		all[id] = true
	}

	dom := map[cfgmodel.NodeID]map[cfgmodel.NodeID]bool{}
	for id := range reachable {
		if id == g.Entry {
			dom[id] = map[cfgmodel.NodeID]bool{g.Entry: true}
			continue
		}
		dom[id] = cloneSet(all)
	}

	changed := true
	for changed {
		changed = false
		for _, n := range g.Nodes {
			id := n.ID
			if id == g.Entry || !reachable[id] {
				continue
			}
			preds := g.Predecessors(id)
			var intersection map[cfgmodel.NodeID]bool
			for _, e := range preds {
				if !reachable[e.From] {
					continue
				}
				if intersection == nil {
					intersection = cloneSet(dom[e.From])
					continue
				}
				for k := range intersection {
					if !dom[e.From][k] {
						delete(intersection, k)
					}
				}
			}
			if intersection == nil {
				intersection = map[cfgmodel.NodeID]bool{}
			}
			intersection[id] = true

			if !setsEqual(intersection, dom[id]) {
				dom[id] = intersection
				changed = true
			}
		}
	}

	return dom
}

// MitigationDominatesSink reports whether mitigation dominates sink in
// g: every path from entry to sink passes through mitigation.
func MitigationDominatesSink(g *cfgmodel.Graph, mitigation, sink cfgmodel.NodeID) bool {
	dom := Dominators(g)
	set, ok := dom[sink]
	if !ok {
		return false
	}
	return set[mitigation]
}

func cloneSet(s map[cfgmodel.NodeID]bool) map[cfgmodel.NodeID]bool {
	out := make(map[cfgmodel.NodeID]bool, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func setsEqual(a, b map[cfgmodel.NodeID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
