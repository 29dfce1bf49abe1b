// Package mitigation holds the process-wide catalog of built-in code
// constructs that neutralize specific vulnerability classes, and the
// detector that locates them in a parsed source file.
package mitigation

// Pattern is one catalog entry: a named-call shape the detector matches
// against call sites, tagged with the vulnerability classes it mitigates.
type Pattern struct {
	// ID is stable across catalog revisions; overrides and whitelists
	// reference patterns by ID.
	ID   string
	Name string

	// Mitigates lists the vulnerability type tags this pattern
	// neutralizes (e.g. "injection", "xss", "path_traversal").
	Mitigates []string

	// NamePattern is evaluated through the timeout regex against a call
	// site's callee name (e.g. "validateInput", "user.isAuthenticated").
	NamePattern string

	// Confidence is the catalog's default confidence for matches:
	// "high", "medium", or "low".
	Confidence string

	Deprecated        bool
	DeprecationReason string
}

// Instance is one mitigation discovered by the detector in a parsed file.
type Instance struct {
	PatternID         string
	File              string
	Line              int
	Scope             string // innermost function/method name, or "module"
	ProtectedVariable string
	Confidence        string

	// CrossFile, CallChain, and DiscoveryDepth are populated by a
	// whole-program linking pass when a mitigation guarding a sink is
	// discovered in a different file than the sink itself; a
	// single-file Detect call leaves them at their zero values.
	CrossFile      bool
	CallChain      []string
	DiscoveryDepth int
}
