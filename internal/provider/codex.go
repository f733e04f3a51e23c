package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dagent-ai/dagent/internal/approval"
	"github.com/dagent-ai/dagent/internal/event"
	"github.com/dagent-ai/dagent/internal/logging"
	"github.com/dagent-ai/dagent/pkg/types"
)

// CodexAdapter drives the codex CLI in exec --json mode.
type CodexAdapter struct {
	desc  Descriptor
	guard Guard
}

// NewCodexAdapter creates an adapter bound to one descriptor.
func NewCodexAdapter(desc Descriptor, guard Guard) *CodexAdapter {
	return &CodexAdapter{desc: desc, guard: guard}
}

func (a *CodexAdapter) ID() types.ProviderID {
	return a.desc.ID
}

func (a *CodexAdapter) execArgs(prompt string, jsonStream bool) []string {
	args := []string{
		"--ask-for-approval", a.desc.ApprovalPolicy,
		"exec",
		"-s", a.desc.SandboxMode,
	}
	if jsonStream {
		args = append(args, "--json")
	}
	return append(args, "--skip-git-repo-check", prompt)
}

// Run streams one prompt through the codex CLI. Thread items become
// progress events; the final agent message is the run's answer.
func (a *CodexAdapter) Run(ctx context.Context, prompt string, emit Emit) (string, error) {
	cmd := newCommand(ctx, a.desc.Executable, a.execArgs(prompt, true)...)

	var (
		lastProgress string
		emitted      bool
	)

	lines, stderr, err := streamLines(cmd, func(line string) error {
		if msg, command, ok := extractCodexProgress(line); ok {
			if command != "" && a.guard != nil {
				if gErr := a.guard.CheckAction(ctx, a.desc.ID, "exec", command); gErr != nil {
					return gErr
				}
			}
			if msg != lastProgress {
				emit(event.WorkerEvent{Kind: event.Progress, Provider: a.desc.ID, Text: msg})
				lastProgress = msg
			}
		}
		if chunk, ok := extractCodexText(line); ok && strings.TrimSpace(chunk) != "" {
			emitted = true
			emit(event.WorkerEvent{Kind: event.AgentChunk, Provider: a.desc.ID, Text: chunk})
		}
		return nil
	})

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if err == nil {
		if emitted {
			return "", nil
		}
		for i := len(lines) - 1; i >= 0; i-- {
			if text, ok := extractCodexText(lines[i]); ok {
				return text, nil
			}
		}
		return "", nil
	}

	if approval.IsDeniedError(err) {
		return "", err
	}

	logging.Debug().
		Str("provider", string(a.desc.ID)).
		Str("stderr", stderr).
		Msg("structured stream failed, degrading to single-shot mode")

	out, stderr, err := a.runPromptOnce(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if IsQuotaText(stderr) {
			return "", &QuotaError{Provider: a.desc.ID, Message: "codex quota/rate limit: " + stderr}
		}
		return "", fmt.Errorf("codex failed: %s", stderr)
	}
	if IsQuotaText(out) {
		return "", &QuotaError{Provider: a.desc.ID, Message: "codex quota/rate limit: " + out}
	}
	return out, nil
}

// RunOnce invokes codex in single-shot mode for preparatory calls.
func (a *CodexAdapter) RunOnce(ctx context.Context, prompt string) (string, error) {
	out, stderr, err := a.runPromptOnce(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("codex failed: %s", stderr)
	}
	return out, nil
}

func (a *CodexAdapter) runPromptOnce(ctx context.Context, prompt string) (string, string, error) {
	return runCaptured(newCommand(ctx, a.desc.Executable, a.execArgs(prompt, false)...))
}

// extractCodexProgress maps one thread-event line to a progress message.
// When the event starts a command execution, the raw command line is
// also returned for approval gating.
func extractCodexProgress(line string) (msg, command string, ok bool) {
	if !gjson.Valid(line) {
		return "", "", false
	}
	v := gjson.Parse(line)
	switch v.Get("type").String() {
	case "session.started", "thread.started":
		return "codex session started", "", true
	case "turn.started":
		return "codex analyzing request", "", true
	case "turn.completed":
		return "codex wrapping up response", "", true
	case "item.started":
		return codexItemStarted(v.Get("item"))
	case "item.completed":
		return codexItemCompleted(v.Get("item"))
	case "error":
		return "codex emitted an error event", "", true
	}
	return "", "", false
}

func codexItemStarted(item gjson.Result) (string, string, bool) {
	itemType := item.Get("type").String()
	if itemType == "" {
		itemType = "step"
	}
	switch itemType {
	case "command_execution":
		cmd := commandPreview(item)
		return "codex exec: " + cmd, item.Get("command").String(), true
	case "function_call", "tool_call":
		name := itemName(item, "unknown")
		args := item.Get("arguments")
		if !args.Exists() {
			args = item.Get("function.arguments")
		}
		preview := args.String()
		if preview == "" {
			return "codex calling tool: " + name, "", true
		}
		return "codex tool: " + name + " | " + truncate(preview, 80), "", true
	case "reasoning":
		return "codex thinking...", "", true
	}
	return "codex " + humanizeItemType(itemType) + "...", "", true
}

func codexItemCompleted(item gjson.Result) (string, string, bool) {
	itemType := item.Get("type").String()
	if itemType == "" {
		itemType = "step"
	}
	switch itemType {
	case "agent_message":
		return "", "", false
	case "reasoning":
		thought := preview(item.Get("text").String(), 110)
		if thought == "" {
			return "codex thinking...", "", true
		}
		return "codex thought: " + thought, "", true
	case "command_execution":
		cmd := commandPreview(item)
		var msg string
		if code := item.Get("exit_code"); code.Exists() {
			msg = fmt.Sprintf("codex exec done (%d): %s", code.Int(), cmd)
		} else {
			status := item.Get("status").String()
			if status == "" {
				status = "completed"
			}
			msg = fmt.Sprintf("codex exec %s: %s", status, cmd)
		}
		if out := outputPreview(item.Get("aggregated_output").String()); out != "" {
			msg += " | " + out
		}
		return msg, "", true
	case "function_call", "tool_call":
		return "codex finished: " + itemName(item, "tool"), "", true
	}
	return "codex finished " + humanizeItemType(itemType), "", true
}

// extractCodexText pulls the final agent message from one event line.
func extractCodexText(line string) (string, bool) {
	if !gjson.Valid(line) {
		return "", false
	}
	v := gjson.Parse(line)
	if v.Get("type").String() != "item.completed" {
		return "", false
	}
	item := v.Get("item")
	if item.Get("type").String() != "agent_message" {
		return "", false
	}
	text := item.Get("text")
	if !text.Exists() {
		return "", false
	}
	return strings.ReplaceAll(text.String(), "\r", "\n"), true
}

func itemName(item gjson.Result, fallback string) string {
	name := item.Get("name").String()
	if name == "" {
		name = item.Get("function.name").String()
	}
	if name == "" {
		name = fallback
	}
	return name
}

func commandPreview(item gjson.Result) string {
	if cmd := preview(item.Get("command").String(), 96); cmd != "" {
		return cmd
	}
	return "command"
}

func humanizeItemType(raw string) string {
	return strings.ReplaceAll(strings.ReplaceAll(raw, "_", " "), "-", " ")
}

func preview(text string, maxChars int) string {
	return truncate(strings.TrimSpace(text), maxChars)
}

// outputPreview condenses aggregated command output to its first two
// non-empty lines.
func outputPreview(out string) string {
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts = append(parts, line)
		if len(parts) == 2 {
			break
		}
	}
	return preview(strings.Join(parts, " | "), 88)
}
