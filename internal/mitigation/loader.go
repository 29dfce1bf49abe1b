package mitigation

import (
	"fmt"
	"time"

	"github.com/oddessentials/reviewrouter/internal/config"
	"github.com/oddessentials/reviewrouter/internal/regexsafe"
)

// RejectedPattern records a catalog entry that failed the ReDoS static
// check at load time and was therefore never activated.
type RejectedPattern struct {
	ID     string
	Report regexsafe.Report
}

// Catalog is a loaded, override-applied, ReDoS-screened set of active
// mitigation patterns ready for detection.
type Catalog struct {
	active   []Pattern
	regex    map[string]*regexsafe.TimeoutRegex
	rejected []RejectedPattern
}

// LoadOptions configures catalog construction.
type LoadOptions struct {
	Overrides []config.MitigationOverride
	Timeout   time.Duration
	Threshold regexsafe.RejectionThreshold
	Whitelist map[string]bool
}

// NewCatalog builds a Catalog from the built-in pattern list, applying
// operator overrides and then screening every non-disabled,
// non-deprecated pattern's NamePattern for ReDoS risk. A pattern whose
// risk meets or exceeds opts.Threshold is excluded from the active set
// and recorded in Rejected, unless its id is in opts.Whitelist.
func NewCatalog(opts LoadOptions) (*Catalog, error) {
	patterns := make([]Pattern, len(builtinPatterns))
	copy(patterns, builtinPatterns)

	byID := make(map[string]*Pattern, len(patterns))
	for i := range patterns {
		byID[patterns[i].ID] = &patterns[i]
	}

	for _, o := range opts.Overrides {
		p, ok := byID[o.PatternID]
		if !ok {
			continue
		}
		if o.Confidence != "" {
			p.Confidence = o.Confidence
		}
		if o.Deprecated {
			p.Deprecated = true
			p.DeprecationReason = o.DeprecationReason
		}
	}

	disabled := make(map[string]bool, len(opts.Overrides))
	for _, o := range opts.Overrides {
		if o.Disabled {
			disabled[o.PatternID] = true
		}
	}

	threshold := opts.Threshold
	if threshold == "" {
		threshold = regexsafe.DefaultRejectionThreshold
	}

	cat := &Catalog{regex: make(map[string]*regexsafe.TimeoutRegex)}
	for i := range patterns {
		p := patterns[i]
		if disabled[p.ID] || p.Deprecated {
			continue
		}
		report := regexsafe.Score(p.NamePattern)
		if !regexsafe.Accept(report, threshold, p.ID, opts.Whitelist) {
			cat.rejected = append(cat.rejected, RejectedPattern{ID: p.ID, Report: report})
			continue
		}
		re, err := regexsafe.New(p.NamePattern, opts.Timeout)
		if err != nil {
			return nil, fmt.Errorf("mitigation: pattern %q failed to compile: %w", p.ID, err)
		}
		cat.active = append(cat.active, p)
		cat.regex[p.ID] = re
	}

	return cat, nil
}

// Active returns every pattern currently live in the catalog, in
// catalog order.
func (c *Catalog) Active() []Pattern {
	return c.active
}

// Rejected returns every built-in pattern excluded at load time because
// its static ReDoS score met or exceeded the configured threshold.
func (c *Catalog) Rejected() []RejectedPattern {
	return c.rejected
}

// Lookup returns the active pattern with the given id.
func (c *Catalog) Lookup(id string) (Pattern, bool) {
	for _, p := range c.active {
		if p.ID == id {
			return p, true
		}
	}
	return Pattern{}, false
}

// PatternsForVulnerability returns every active, non-deprecated pattern
// tagged as mitigating the given vulnerability type.
func (c *Catalog) PatternsForVulnerability(vulnType string) []Pattern {
	var out []Pattern
	for _, p := range c.active {
		for _, tag := range p.Mitigates {
			if tag == vulnType {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
