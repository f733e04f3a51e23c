package memory

import (
	"sort"
	"strings"
)

// normalizeTerms splits a query into lowercase alphanumeric terms,
// deduplicated, capped at maxQueryTerms. Single-character terms are
// dropped as noise.
func normalizeTerms(input string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, raw := range strings.FieldsFunc(input, func(r rune) bool {
		return !isAlphanumeric(r)
	}) {
		t := strings.ToLower(strings.TrimSpace(raw))
		if len(t) < 2 || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
		if len(terms) >= maxQueryTerms {
			break
		}
	}
	return terms
}

func isAlphanumeric(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r > 127
}

func squashWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// squashBlockWhitespace squashes each line but keeps line structure.
func squashBlockWhitespace(text string) string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := squashWhitespace(strings.TrimSpace(raw))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return squashWhitespace(strings.TrimSpace(text))
	}
	return strings.Join(lines, "\n")
}

func clipChars(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// prefixMultiline prepends prefix to the first line and indents the
// rest to align under it.
func prefixMultiline(prefix, text string) string {
	lines := strings.Split(text, "\n")
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(lines[0])

	indent := strings.Repeat(" ", len([]rune(prefix)))
	for _, line := range lines[1:] {
		sb.WriteString("\n")
		sb.WriteString(indent)
		sb.WriteString(line)
	}
	return sb.String()
}

func messagePrefix(item Message) string {
	switch item.Role {
	case "user":
		return "user: "
	case "assistant":
		if item.Agent != "" {
			return "assistant(" + item.Agent + "): "
		}
		return "assistant: "
	case "system":
		return "system: "
	}
	return item.Role + ": "
}

// formatLine renders one entry for the context block, preserving line
// structure with aligned indentation.
func formatLine(item Message) (string, bool) {
	text := squashBlockWhitespace(strings.TrimSpace(item.Content))
	if text == "" {
		return "", false
	}
	return prefixMultiline(messagePrefix(item), clipChars(text, maxLineChars)), true
}

// formatPreviewLine renders one entry as a single flattened line.
func formatPreviewLine(item Message) (string, bool) {
	block := squashBlockWhitespace(strings.TrimSpace(item.Content))
	if block == "" {
		return "", false
	}

	compact := squashWhitespace(strings.ReplaceAll(block, "\n", " "))
	if compact == "" {
		return "", false
	}
	return messagePrefix(item) + clipChars(compact, maxPreviewChars), true
}

func sortByID(items []Message) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
