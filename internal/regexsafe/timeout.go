// Package regexsafe wraps the standard regex engine with a post-hoc
// timeout check and a static ReDoS risk scorer, so mitigation patterns
// can be evaluated against untrusted-shaped input without a single
// pathological pattern stalling a run.
package regexsafe

import (
	"regexp"
	"time"
)

const (
	// MaxInputLen is the longest input the timeout regex will evaluate;
	// longer input is treated as a non-match without running the engine.
	MaxInputLen = 10000

	minTimeout     = 10 * time.Millisecond
	maxTimeout     = 1000 * time.Millisecond
	defaultTimeout = 100 * time.Millisecond
)

// ClampTimeout clamps d to [10ms, 1000ms]. A zero duration yields the
// 100ms default.
func ClampTimeout(d time.Duration) time.Duration {
	if d == 0 {
		return defaultTimeout
	}
	if d < minTimeout {
		return minTimeout
	}
	if d > maxTimeout {
		return maxTimeout
	}
	return d
}

// MatchResult reports the outcome of a single timeout-guarded match.
type MatchResult struct {
	Matched   bool
	TimedOut  bool
	ElapsedMs int64
}

// TimeoutRegex wraps a compiled regexp with a bounded-input check and a
// post-hoc elapsed-time check. Because regexp.MatchString runs
// synchronously and cannot be preempted mid-evaluation, a "timeout" here
// means the match completed but took longer than the configured budget
// — the result is still reported, but conservatively folded into
// Matched=false so callers never trust a slow match.
type TimeoutRegex struct {
	re      *regexp.Regexp
	timeout time.Duration
}

// New compiles pattern and wraps it with the given timeout (clamped to
// [10ms, 1000ms]).
func New(pattern string, timeout time.Duration) (*TimeoutRegex, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &TimeoutRegex{re: re, timeout: ClampTimeout(timeout)}, nil
}

// MatchString evaluates input against the pattern. Input longer than
// MaxInputLen is rejected up front as {matched=false, timedOut=false}
// without ever reaching the engine.
func (t *TimeoutRegex) MatchString(input string) (result MatchResult) {
	if len(input) > MaxInputLen {
		return MatchResult{}
	}

	defer func() {
		if r := recover(); r != nil {
			result = MatchResult{Matched: false, TimedOut: true}
		}
	}()

	start := time.Now()
	matched := t.re.MatchString(input)
	elapsed := time.Since(start)

	result.ElapsedMs = elapsed.Milliseconds()
	if elapsed > t.timeout {
		result.TimedOut = true
		result.Matched = false
		return result
	}
	result.Matched = matched
	return result
}
