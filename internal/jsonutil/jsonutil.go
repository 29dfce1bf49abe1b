// Package jsonutil provides the small, pure parsing helpers every LLM
// agent's response parser shares: code-fence stripping, brace-bounded
// object extraction, and truncated previews for error messages. The
// repair request itself (re-prompting on parse failure) is an agent
// concern, not this package's.
package jsonutil

import "strings"

// StripCodeFence removes a single leading/trailing markdown code fence
// (```` ``` ```` or ```` ```json ````) from trimmed text, leaving the
// inner body untouched otherwise.
func StripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}

	first := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(first, "```") {
		return trimmed
	}

	last := strings.TrimSpace(lines[len(lines)-1])
	if last != "```" {
		return trimmed
	}

	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}

// ExtractJSONObject locates a single JSON object between the first `{`
// and the last `}` in s, rejecting any non-whitespace content outside
// that span. It returns an error if no braces are found, they are
// mismatched, or surrounding content is non-whitespace.
func ExtractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return "", &ParseError{Preview: Preview(s, 200), Reason: "no JSON object found"}
	}

	before := s[:start]
	after := s[end+1:]
	if strings.TrimSpace(before) != "" {
		return "", &ParseError{Preview: Preview(s, 200), Reason: "non-whitespace content before JSON object"}
	}
	if strings.TrimSpace(after) != "" {
		return "", &ParseError{Preview: Preview(s, 200), Reason: "non-whitespace content after JSON object"}
	}

	return s[start : end+1], nil
}

// Preview truncates s to at most n runes, appending an ellipsis marker
// when truncated, for inclusion in parse-failure error messages.
func Preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

// ParseError reports a JSON extraction/parse failure along with a
// bounded preview of the offending text.
type ParseError struct {
	Preview string
	Reason  string
}

func (e *ParseError) Error() string {
	return "jsonutil: " + e.Reason + ": " + e.Preview
}
