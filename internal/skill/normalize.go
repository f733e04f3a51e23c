package skill

import "strings"

// NormalizeID compacts a raw skill name into a lowercase dash-separated
// id. Symbols and whitespace collapse to single dashes; an id that
// would be empty returns "".
func NormalizeID(raw string) string {
	var sb strings.Builder
	prevDash := false
	for _, ch := range strings.TrimSpace(raw) {
		switch {
		case ch >= 'a' && ch <= 'z' || ch >= '0' && ch <= '9':
			sb.WriteRune(ch)
			prevDash = false
		case ch >= 'A' && ch <= 'Z':
			sb.WriteRune(ch + ('a' - 'A'))
			prevDash = false
		case ch == '-' || ch == '_' || ch == '.' || ch == ' ' || ch == '/':
			if !prevDash && sb.Len() > 0 {
				sb.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.TrimRight(sb.String(), "-")
}

// ExtractRefs pulls @skill:<id>, #skill:<id> and skill:<id> references
// out of a prompt, first-seen order, deduplicated.
func ExtractRefs(prompt string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range strings.Fields(prompt) {
		token := strings.TrimFunc(raw, func(r rune) bool {
			return !isRefRune(r)
		})
		for _, prefix := range []string{"@skill:", "#skill:", "skill:"} {
			rest, ok := strings.CutPrefix(token, prefix)
			if !ok {
				continue
			}
			if id := NormalizeID(rest); id != "" && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func isRefRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
		r == ':' || r == '-' || r == '_' || r == '#' || r == '@'
}

// tokenizeTerms splits a query into lowercase search terms, capped at
// ten, dropping single characters.
func tokenizeTerms(input string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range strings.FieldsFunc(input, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		t := strings.ToLower(raw)
		if len(t) < 2 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) >= 10 {
			break
		}
	}
	return out
}

func sanitizeLine(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

func sanitizeBlock(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
