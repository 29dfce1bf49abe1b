package controlflow

import (
	"time"

	"github.com/oddessentials/reviewrouter/internal/regexsafe"
)

// sinkPattern is a catalog entry for a dangerous operation: a named-call
// shape the scanner matches against a CFG node's CallSites, tagged with
// the vulnerability type it introduces when reached without a
// corresponding mitigation on every path. Mirrors the shape of
// mitigation.Pattern but for the opposite side of the same match: sinks
// instead of guards.
type sinkPattern struct {
	ID          string
	Type        string
	NamePattern string
}

// builtinSinks is the fixed set of sink shapes the control-flow engine
// recognizes. Each entry's Type lines up with the vulnerability type
// tags mitigation.Pattern.Mitigates already uses, so a sink's candidate
// mitigations are found with Catalog.PatternsForVulnerability(Type).
var builtinSinks = []sinkPattern{
	{ID: "sink.db-query", Type: "injection", NamePattern: `(?i)^(query|execute|exec|raw|rawQuery)$`},
	{ID: "sink.shell-exec", Type: "injection", NamePattern: `(?i)^(exec|execSync|spawn)$`},
	{ID: "sink.render-unsafe-html", Type: "xss", NamePattern: `(?i)^(renderHTML|unsafeHTML|dangerouslySetInnerHTML)$`},
	{ID: "sink.template-write", Type: "xss", NamePattern: `(?i)^(write|writeln)$`},
	{ID: "sink.fs-read", Type: "path_traversal", NamePattern: `(?i)^(readFile|readFileSync|createReadStream|open)$`},
	{ID: "sink.fs-write", Type: "path_traversal", NamePattern: `(?i)^(writeFile|writeFileSync|unlink|rm)$`},
	{ID: "sink.privileged-op", Type: "auth_bypass", NamePattern: `(?i)^(deleteUser|grantAdmin|transferFunds|resetPassword|revokeAccess)$`},
	{ID: "sink.prototype-merge", Type: "prototype_pollution", NamePattern: `(?i)^(merge|extend|assign|deepMerge)$`},
	{ID: "sink.outbound-request", Type: "ssrf", NamePattern: `(?i)^(fetch|request|axios)$`},
}

// sinkCatalog is the screened, compiled form of builtinSinks, built once
// by newSinkCatalog the same way mitigation.NewCatalog screens its own
// NamePatterns: every pattern goes through regexsafe before it is
// trusted to run against untrusted call-site names.
type sinkCatalog struct {
	active []sinkPattern
	regex  map[string]*regexsafe.TimeoutRegex
}

func newSinkCatalog(timeout time.Duration) *sinkCatalog {
	cat := &sinkCatalog{regex: make(map[string]*regexsafe.TimeoutRegex, len(builtinSinks))}
	for _, p := range builtinSinks {
		report := regexsafe.Score(p.NamePattern)
		if !regexsafe.Accept(report, regexsafe.DefaultRejectionThreshold, p.ID, nil) {
			continue
		}
		re, err := regexsafe.New(p.NamePattern, timeout)
		if err != nil {
			continue
		}
		cat.active = append(cat.active, p)
		cat.regex[p.ID] = re
	}
	return cat
}

// match returns the sink pattern matching calleeName, if any.
func (c *sinkCatalog) match(calleeName string) (sinkPattern, bool) {
	for _, p := range c.active {
		re := c.regex[p.ID]
		if re == nil {
			continue
		}
		if result := re.MatchString(calleeName); result.Matched {
			return p, true
		}
	}
	return sinkPattern{}, false
}
