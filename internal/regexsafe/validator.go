package regexsafe

import (
	"regexp/syntax"
	"strings"
)

// Risk is the ReDoS risk classification assigned to a pattern.
type Risk string

const (
	RiskNone   Risk = "none"
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Report is the result of statically scoring one pattern.
type Report struct {
	Pattern                  string
	Score                    int
	Risk                     Risk
	HasNestedQuantifiers     bool
	HasOverlappingAlternation bool
	HasQuantifiedOverlap     bool
	StarHeight               int
	QuantifierCount          int
	CompileError             bool
}

// Score statically scores pattern for ReDoS risk without ever executing
// it. A compile failure is scored as maximal risk, matching the "fail
// closed" stance the rest of the mitigation catalog takes toward
// malformed input.
func Score(pattern string) Report {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return Report{Pattern: pattern, Score: 100, Risk: RiskHigh, CompileError: true}
	}

	nested := hasNestedQuantifiers(re)
	overlap := hasOverlappingAlternation(re)
	quantOverlap := hasQuantifiedOverlap(re)
	height := starHeight(re)
	count := quantifierCount(re)

	score := 0
	if nested {
		score += 50
	}
	if overlap || quantOverlap {
		score += 30
	}
	clampedHeight := height
	if clampedHeight > 2 {
		clampedHeight = 2
	}
	score += 10 * clampedHeight

	extraQuantifiers := count - 5
	if extraQuantifiers > 0 {
		score += 2 * extraQuantifiers
	}
	if score > 100 {
		score = 100
	}

	return Report{
		Pattern:                   pattern,
		Score:                     score,
		Risk:                      riskForScore(score),
		HasNestedQuantifiers:      nested,
		HasOverlappingAlternation: overlap,
		HasQuantifiedOverlap:      quantOverlap,
		StarHeight:                height,
		QuantifierCount:           count,
	}
}

func riskForScore(score int) Risk {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	case score > 0:
		return RiskLow
	default:
		return RiskNone
	}
}

func isQuantifierOp(op syntax.Op) bool {
	return op == syntax.OpStar || op == syntax.OpPlus || op == syntax.OpRepeat || op == syntax.OpQuest
}

// hasNestedQuantifiers reports whether any quantified subexpression's
// body itself contains another quantifier — the classic catastrophic
// backtracking shape (a+)+.
func hasNestedQuantifiers(re *syntax.Regexp) bool {
	found := false
	var walk func(r *syntax.Regexp)
	walk = func(r *syntax.Regexp) {
		if found {
			return
		}
		if isQuantifierOp(r.Op) && len(r.Sub) > 0 && containsQuantifier(r.Sub[0]) {
			found = true
			return
		}
		for _, s := range r.Sub {
			walk(s)
		}
	}
	walk(re)
	return found
}

func containsQuantifier(re *syntax.Regexp) bool {
	if isQuantifierOp(re.Op) {
		return true
	}
	for _, s := range re.Sub {
		if containsQuantifier(s) {
			return true
		}
	}
	return false
}

// hasOverlappingAlternation reports whether any quantified alternation
// group has a branch whose literal prefix is a prefix of another
// branch's — the shape that makes the engine explore exponentially many
// ways to split the same input across alternatives.
func hasOverlappingAlternation(re *syntax.Regexp) bool {
	found := false
	var walk func(r *syntax.Regexp, quantified bool)
	walk = func(r *syntax.Regexp, quantified bool) {
		if found {
			return
		}
		if r.Op == syntax.OpAlternate && quantified && branchesOverlap(r.Sub) {
			found = true
			return
		}
		childQuantified := isQuantifierOp(r.Op)
		for _, s := range r.Sub {
			walk(s, quantified || childQuantified)
		}
	}
	walk(re, false)
	return found
}

func branchesOverlap(branches []*syntax.Regexp) bool {
	prefixes := make([]string, 0, len(branches))
	for _, b := range branches {
		// The parser factors a shared leading literal out of an
		// alternation, so abc|abcd arrives as abc(?:|d): an empty branch
		// is what remains of a branch that was a prefix of another.
		if b.Op == syntax.OpEmptyMatch {
			return true
		}
		prefixes = append(prefixes, literalPrefix(b))
	}
	for i := 0; i < len(prefixes); i++ {
		for j := 0; j < len(prefixes); j++ {
			if i == j || prefixes[i] == "" || prefixes[j] == "" {
				continue
			}
			if i != j && strings.HasPrefix(prefixes[j], prefixes[i]) {
				return true
			}
		}
	}
	return false
}

func literalPrefix(re *syntax.Regexp) string {
	switch re.Op {
	case syntax.OpLiteral:
		return string(re.Rune)
	case syntax.OpConcat:
		if len(re.Sub) > 0 {
			return literalPrefix(re.Sub[0])
		}
	}
	return ""
}

// hasQuantifiedOverlap matches the (.*x){n,} / (x.*){n,} shape: a
// quantified group whose body concatenates a wildcard-star with a
// literal, in either order.
func hasQuantifiedOverlap(re *syntax.Regexp) bool {
	found := false
	var walk func(r *syntax.Regexp)
	walk = func(r *syntax.Regexp) {
		if found {
			return
		}
		if isQuantifierOp(r.Op) && len(r.Sub) > 0 && concatHasWildcardAndLiteral(r.Sub[0]) {
			found = true
			return
		}
		for _, s := range r.Sub {
			walk(s)
		}
	}
	walk(re)
	return found
}

func concatHasWildcardAndLiteral(re *syntax.Regexp) bool {
	for re.Op == syntax.OpCapture && len(re.Sub) == 1 {
		re = re.Sub[0]
	}
	if re.Op != syntax.OpConcat {
		return false
	}
	sawWildcardStar := false
	sawLiteral := false
	for _, s := range re.Sub {
		if s.Op == syntax.OpStar && len(s.Sub) == 1 && (s.Sub[0].Op == syntax.OpAnyChar || s.Sub[0].Op == syntax.OpAnyCharNotNL) {
			sawWildcardStar = true
		}
		if s.Op == syntax.OpLiteral {
			sawLiteral = true
		}
	}
	return sawWildcardStar && sawLiteral
}

// starHeight is the maximum nesting depth of quantified groups; a
// quantifier on a single atom or character class does not add to it.
func starHeight(re *syntax.Regexp) int {
	height := 0
	if isQuantifierOp(re.Op) && len(re.Sub) > 0 {
		switch re.Sub[0].Op {
		case syntax.OpCapture, syntax.OpConcat, syntax.OpAlternate:
			height = 1
		}
	}
	maxChild := 0
	for _, s := range re.Sub {
		if h := starHeight(s); h > maxChild {
			maxChild = h
		}
	}
	return height + maxChild
}

// quantifierCount counts every quantifier node in the tree.
func quantifierCount(re *syntax.Regexp) int {
	count := 0
	if isQuantifierOp(re.Op) {
		count++
	}
	for _, s := range re.Sub {
		count += quantifierCount(s)
	}
	return count
}

// BatchReport scores every pattern in order, preserving input order in
// the returned slice.
func BatchReport(patterns []string) []Report {
	reports := make([]Report, len(patterns))
	for i, p := range patterns {
		reports[i] = Score(p)
	}
	return reports
}

// RejectionThreshold governs the reject/accept decision a catalog
// loader applies to a Report.
type RejectionThreshold Risk

// DefaultRejectionThreshold matches the "medium" default.
const DefaultRejectionThreshold = RejectionThreshold(RiskMedium)

var riskOrder = map[Risk]int{RiskNone: 0, RiskLow: 1, RiskMedium: 2, RiskHigh: 3}

// Accept reports whether r should be accepted given threshold and an
// optional whitelist of pattern ids exempted from rejection.
func Accept(r Report, threshold RejectionThreshold, patternID string, whitelist map[string]bool) bool {
	if whitelist[patternID] {
		return true
	}
	return riskOrder[r.Risk] < riskOrder[Risk(threshold)]
}
