package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"

	"github.com/dagent-ai/dagent/internal/event"
	"github.com/dagent-ai/dagent/internal/logging"
	"github.com/dagent-ai/dagent/internal/provider"
	"github.com/dagent-ai/dagent/pkg/types"
)

const defaultDecomposeTimeout = 30 * time.Second

// decompose asks one targeted provider to split the task into
// per-provider subtasks. Planners are tried in order, current primary
// first. Quota failures move to the next planner; any other failure
// abandons decomposition. Returns nil when no planner produced a usable
// split within the timeout.
func (c *Coordinator) decompose(ctx context.Context, prompt string, targets []types.ProviderID, forward func(event.WorkerEvent)) map[types.ProviderID]string {
	dctx, cancel := context.WithTimeout(ctx, c.decomposeTimeout())
	defer cancel()

	request := buildDecompositionPrompt(prompt, targets)

	for _, planner := range plannerOrder(targets, c.Primary()) {
		adapter, err := c.registry.Get(planner)
		if err != nil {
			continue
		}

		response, err := runPlanner(dctx, adapter, request)
		if err != nil {
			if provider.IsQuotaError(err) {
				forward(event.WorkerEvent{
					Kind: event.Tool,
					Text: fmt.Sprintf("%s quota limited, trying next planner...", planner),
				})
				continue
			}
			logging.Debug().Err(err).Str("planner", string(planner)).Msg("decomposition planner failed")
			return nil
		}

		if tasks := parseDecomposition(response, targets); tasks != nil {
			return tasks
		}
		// unusable split, try the next planner
	}
	return nil
}

// runPlanner invokes the planner once per attempt, retrying transient
// process failures with exponential backoff until the decomposition
// deadline. Quota errors are permanent for this planner.
func runPlanner(ctx context.Context, adapter provider.Adapter, request string) (string, error) {
	var response string
	op := func() error {
		out, err := adapter.RunOnce(ctx, request)
		if err != nil {
			if provider.IsQuotaError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		response = out
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 0 // bounded by ctx
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return response, nil
}

// plannerOrder puts the current primary first when targeted, then the
// remaining targets in plan order.
func plannerOrder(targets []types.ProviderID, primary types.ProviderID) []types.ProviderID {
	order := make([]types.ProviderID, 0, len(targets))
	for _, id := range targets {
		if id == primary {
			order = append(order, id)
		}
	}
	for _, id := range targets {
		if id != primary {
			order = append(order, id)
		}
	}
	return order
}

func buildDecompositionPrompt(task string, targets []types.ProviderID) string {
	names := make([]string, len(targets))
	for i, id := range targets {
		names[i] = string(id)
	}
	a0 := names[0]
	a1 := a0
	if len(names) > 1 {
		a1 = names[1]
	}
	return fmt.Sprintf(`You are a task planner for a multi-agent system. Decompose the user task into subtasks for specialized agents.

Available agents:
- claude: Best at analysis, planning, code review, documentation, problem diagnosis, architecture design, explaining concepts.
- codex: Best at code implementation, file editing, running shell commands, testing, making code changes.

User task:
---
%s
---

Respond in EXACTLY this format with no extra text before or after:

[%s]
<subtask for %s>

[%s]
<subtask for %s>

Rules:
- Only use agents: %s
- Each subtask should be specific and actionable
- Subtasks should be independent (agents work in parallel)
- Leverage each agent's strengths
- Reference the overall goal so each agent has context`,
		task, a0, a0, a1, a1, strings.Join(names, ", "))
}

// extractSectionHeader returns the name inside a "[name]" line, or ""
// when the line is not a bare section header.
func extractSectionHeader(line string) string {
	rest, ok := strings.CutPrefix(line, "[")
	if !ok {
		return ""
	}
	name, after, ok := strings.Cut(rest, "]")
	if !ok {
		return ""
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(after) != "" {
		return ""
	}
	return name
}

// parseDecomposition reads "[provider]\n<subtask>" sections out of the
// planner response. The split is usable only when every targeted
// provider received a non-empty subtask and at least two are present.
func parseDecomposition(response string, targets []types.ProviderID) map[types.ProviderID]string {
	targetSet := make(map[types.ProviderID]bool, len(targets))
	for _, id := range targets {
		targetSet[id] = true
	}

	tasks := make(map[types.ProviderID]string)
	var current types.ProviderID
	var lines []string
	flush := func() {
		if current == "" {
			return
		}
		if text := strings.TrimSpace(strings.Join(lines, "\n")); text != "" {
			tasks[current] = text
		}
		current = ""
		lines = nil
	}

	for _, line := range strings.Split(response, "\n") {
		if name := extractSectionHeader(strings.TrimSpace(line)); name != "" {
			flush()
			if id := types.ProviderID(name); targetSet[id] {
				current = id
			}
			continue
		}
		if current != "" {
			lines = append(lines, line)
		}
	}
	flush()

	if len(tasks) < 2 {
		return nil
	}
	for _, id := range targets {
		if _, ok := tasks[id]; !ok {
			return nil
		}
	}
	return tasks
}

func formatDecompositionSummary(tasks map[types.ProviderID]string, targets []types.ProviderID) string {
	lines := []string{"multi-agent plan:"}
	for _, id := range targets {
		if task, ok := tasks[id]; ok {
			flat := strings.Join(strings.Fields(task), " ")
			lines = append(lines, fmt.Sprintf("- %s: %s", id, clipRunes(flat, 180)))
		}
	}
	return strings.Join(lines, "\n")
}

// buildAgentPrompt frames one provider's assignment with the overall
// goal and a short view of what the sibling agents are doing.
func buildAgentPrompt(task string, id types.ProviderID, subtask string, tasks map[types.ProviderID]string, targets []types.ProviderID) string {
	var others []string
	for _, other := range targets {
		if other == id {
			continue
		}
		if t, ok := tasks[other]; ok {
			others = append(others, fmt.Sprintf("- %s is working on: %s", other, clipRunes(t, 200)))
		}
	}

	return fmt.Sprintf(`OVERALL TASK: %s

YOUR ASSIGNMENT (you are %s): %s

COORDINATION CONTEXT:
Other agents are working on related subtasks in parallel:
%s
Focus on YOUR assignment above. Do not duplicate work assigned to other agents.`,
		task, id, subtask, strings.Join(others, "\n"))
}

func clipRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
