package budget

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/oddessentials/reviewrouter/internal/regexsafe"
)

// FilePriority classifies a file path for degraded-mode skip decisions.
type FilePriority string

const (
	PriorityHigh   FilePriority = "high"
	PriorityMedium FilePriority = "medium"
	PriorityLow    FilePriority = "low"
)

var priorityOrder = map[FilePriority]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}

// classifierTimeout guards the built-in catalogs; these patterns are
// fixed and simple, so the 50ms budget is generous headroom rather than
// a tight limit.
const classifierTimeout = 50 * time.Millisecond

var (
	lowPatterns = mustCompileAll([]string{
		`__tests__`,
		`\.test\.`,
		`\.spec\.`,
		`(^|/)scripts/`,
		`(^|/)tools/`,
		`(^|/)types/`,
		`(^|/)interfaces/`,
		`(^|/)constants/`,
		`(^|/)config/`,
	})
	highPatterns = mustCompileAll([]string{
		`(^|/)auth/`,
		`(^|/)security/`,
		`(^|/)middleware/`,
		`(^|/)handlers/`,
		`(^|/)controllers/`,
		`(^|/)api/`,
		`(^|/)database/`,
		`(^|/)db/`,
		`(?i)sanitize|validate|escape`,
	})
)

func mustCompileAll(patterns []string) []*regexsafe.TimeoutRegex {
	out := make([]*regexsafe.TimeoutRegex, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexsafe.New(p, classifierTimeout)
		if err != nil {
			panic("budget: invalid built-in classifier pattern " + p + ": " + err.Error())
		}
		out = append(out, re)
	}
	return out
}

// ClassifyFile assigns path a priority. Low-priority patterns (tests,
// tooling, declarations) are checked first so a test file nested under
// a high-priority directory (e.g. src/auth/__tests__/login.test.ts)
// still classifies low.
func ClassifyFile(path string) FilePriority {
	normalized := filepath.ToSlash(path)
	for _, re := range lowPatterns {
		if re.MatchString(normalized).Matched {
			return PriorityLow
		}
	}
	for _, re := range highPatterns {
		if re.MatchString(normalized).Matched {
			return PriorityHigh
		}
	}
	return PriorityMedium
}

// SortFilesByPriority returns a new slice ordered high < medium < low,
// stable among files sharing a priority, leaving files untouched.
func SortFilesByPriority(files []string) []string {
	out := make([]string, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool {
		return priorityOrder[ClassifyFile(out[i])] < priorityOrder[ClassifyFile(out[j])]
	})
	return out
}
