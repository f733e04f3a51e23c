package skill

import (
	"context"
	"strings"
)

const (
	injectMaxCount        = 3
	injectMaxCharsPerItem = 1400
	injectMaxTotalChars   = 3600
	injectMinRemaining    = 120
)

// Inject appends relevant skill blocks to a base prompt. Explicit
// @skill references in the user prompt take precedence over keyword
// matches; at most three skills are injected within a character budget.
func (s *Store) Inject(ctx context.Context, userPrompt, basePrompt string) string {
	var selected []Skill
	seen := make(map[string]bool)

	explicit, err := s.ResolveExplicitRefs(ctx, userPrompt, injectMaxCount)
	if err == nil {
		for _, sk := range explicit {
			if !seen[sk.ID] {
				seen[sk.ID] = true
				selected = append(selected, sk)
			}
		}
	}
	if len(selected) < injectMaxCount {
		matched, err := s.SearchRelevant(ctx, userPrompt, injectMaxCount)
		if err == nil {
			for _, sk := range matched {
				if len(selected) >= injectMaxCount {
					break
				}
				if !seen[sk.ID] {
					seen[sk.ID] = true
					selected = append(selected, sk)
				}
			}
		}
	}
	if len(selected) == 0 {
		return basePrompt
	}

	used := 0
	var blocks []string
	for _, sk := range selected {
		remaining := injectMaxTotalChars - used
		if remaining < injectMinRemaining {
			break
		}
		hardLimit := min(injectMaxCharsPerItem, remaining)

		content := strings.TrimSpace(sk.Content)
		if runes := []rune(content); len(runes) > hardLimit {
			content = string(runes[:hardLimit]) + "\n..."
		}
		used += len([]rune(content))

		title := "[skill:" + sk.ID + "] " + sk.Name
		if strings.TrimSpace(sk.Description) != "" {
			title += " - " + sk.Description
		}
		blocks = append(blocks, title+"\n"+content)
	}
	if len(blocks) == 0 {
		return basePrompt
	}

	return basePrompt +
		"\n\nRelevant skills loaded by dagent:\n" + strings.Join(blocks, "\n\n") +
		"\n\nUse these skills when applicable, then solve the user request."
}
