// Package pathanalysis answers reachability, dominance, and mitigation
// coverage questions over a single cfgmodel.Graph.
package pathanalysis

import "github.com/oddessentials/reviewrouter/internal/cfgmodel"

// Reachable returns the set of nodes reachable from g's entry via BFS.
func Reachable(g *cfgmodel.Graph) map[cfgmodel.NodeID]bool {
	seen := map[cfgmodel.NodeID]bool{g.Entry: true}
	queue := []cfgmodel.NodeID{g.Entry}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.Successors(cur) {
			if !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return seen
}

// DeadCode returns every node id not reachable from entry, in ascending
// id order.
func DeadCode(g *cfgmodel.Graph) []cfgmodel.NodeID {
	reachable := Reachable(g)
	var dead []cfgmodel.NodeID
	for _, n := range g.Nodes {
		if !reachable[n.ID] {
			dead = append(dead, n.ID)
		}
	}
	return dead
}

// HasCrossFunctionAsync reports whether g is async and awaits a call
// whose callee resolves to another named function in the module.
// callerFunctionName is g's own short name, excluded so a recursive
// self-await doesn't count.
func HasCrossFunctionAsync(g *cfgmodel.Graph, callerFunctionName string, moduleFunctionNames map[string]bool) bool {
	if !g.IsAsync {
		return false
	}
	for _, ab := range g.AwaitBoundaries {
		if ab.Callee == "" || ab.Callee == callerFunctionName {
			continue
		}
		if moduleFunctionNames[ab.Callee] {
			return true
		}
	}
	return false
}
