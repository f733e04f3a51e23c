package approval

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ToolAllowed reports whether a tool name matches any entry of an
// allowed-tool list. Entries may be exact names ("Read"), wildcard
// patterns ("mcp__*"), or scoped bash grants ("Bash(git diff:*)").
func ToolAllowed(name string, allowed []string) bool {
	for _, entry := range allowed {
		pattern := entry
		// Scoped entries like "Bash(git diff:*)" gate on the tool name only.
		if i := strings.IndexByte(entry, '('); i > 0 && strings.HasSuffix(entry, ")") {
			pattern = entry[:i]
		}
		if matchWildcard(pattern, name) {
			return true
		}
	}
	return false
}

// matchWildcard checks if a string matches a wildcard pattern.
// For simple patterns (* at start/end), uses string matching.
// For complex patterns (containing **), uses doublestar.
func matchWildcard(pattern, s string) bool {
	if pattern == "*" {
		return true
	}

	if strings.Contains(pattern, "**") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}

	if strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(s, prefix)
	}

	if strings.HasPrefix(pattern, "*") && !strings.HasSuffix(pattern, "*") {
		suffix := strings.TrimPrefix(pattern, "*")
		return strings.HasSuffix(s, suffix)
	}

	if strings.Contains(pattern, "*") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}

	return pattern == s
}
