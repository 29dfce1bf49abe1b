package mitigation

// LinkCrossFile annotates instance as discovered through a cross-file
// call chain: chain runs from the sink's file to the file where the
// mitigation itself lives, inclusive of both. DiscoveryDepth is
// len(chain)-1, the number of call hops crossed to find it. Callers
// (the router's whole-program resolution pass) invoke this only when
// chain has more than one distinct file; a same-file mitigation is left
// with its Detect-time zero values.
func LinkCrossFile(instance Instance, chain []string) Instance {
	instance.CrossFile = true
	instance.CallChain = chain
	if len(chain) > 0 {
		instance.DiscoveryDepth = len(chain) - 1
	}
	return instance
}
