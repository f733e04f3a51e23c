// Package dispatch resolves a raw operator message into a dispatch plan.
package dispatch

import (
	"errors"
	"strings"

	"github.com/dagent-ai/dagent/pkg/types"
)

// ErrEmptyPrompt is returned when the message carries no content to send
// after routing markers are stripped.
var ErrEmptyPrompt = errors.New("empty prompt")

// Plan is the resolved routing decision for one operator message.
type Plan struct {
	// Targets lists the providers to run, in first-seen mention order.
	// Never empty: without mentions the configured primary is targeted.
	Targets []types.ProviderID

	// Prompt is the message text with routing markers removed.
	Prompt string

	// Decompose permits pre-splitting the task into per-provider
	// subtasks when more than one provider is targeted.
	Decompose bool
}

// Multi reports whether the plan targets more than one provider.
func (p *Plan) Multi() bool {
	return len(p.Targets) > 1
}

// Resolve parses routing markers out of a raw message and builds the
// dispatch plan. A token of the form "@id" anywhere in the text targets
// a known provider and is removed from the prompt; tokens that do not
// name a known provider stay as literal text so ordinary "@" usage is
// not swallowed. Duplicate mentions collapse to the first occurrence.
func Resolve(raw string, primary types.ProviderID, known []types.ProviderID, decompose bool) (*Plan, error) {
	knownSet := make(map[types.ProviderID]bool, len(known))
	for _, id := range known {
		knownSet[id] = true
	}

	var targets []types.ProviderID
	seen := make(map[types.ProviderID]bool)
	var kept []string

	for _, token := range strings.Fields(raw) {
		if name, ok := strings.CutPrefix(token, "@"); ok {
			if id := types.ProviderID(name); knownSet[id] {
				if !seen[id] {
					seen[id] = true
					targets = append(targets, id)
				}
				continue
			}
		}
		kept = append(kept, token)
	}

	prompt := strings.Join(kept, " ")
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	if len(targets) == 0 {
		targets = []types.ProviderID{primary}
	}

	return &Plan{
		Targets:   targets,
		Prompt:    prompt,
		Decompose: decompose,
	}, nil
}
