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

// ClaudeAdapter drives the claude CLI in stream-json mode.
type ClaudeAdapter struct {
	desc  Descriptor
	guard Guard
}

// NewClaudeAdapter creates an adapter bound to one descriptor.
func NewClaudeAdapter(desc Descriptor, guard Guard) *ClaudeAdapter {
	return &ClaudeAdapter{desc: desc, guard: guard}
}

func (a *ClaudeAdapter) ID() types.ProviderID {
	return a.desc.ID
}

func (a *ClaudeAdapter) streamArgs(prompt string) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
		"--permission-mode", a.desc.PermissionMode,
	}
	args = a.appendAllowedTools(args)
	return append(args, prompt)
}

func (a *ClaudeAdapter) appendAllowedTools(args []string) []string {
	if len(a.desc.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(a.desc.AllowedTools, ","))
	}
	return args
}

// Run streams one prompt through the claude CLI. Text deltas become
// chunk events as soon as they arrive; tool-use blocks become tool
// events after clearing the approval guard.
func (a *ClaudeAdapter) Run(ctx context.Context, prompt string, emit Emit) (string, error) {
	cmd := newCommand(ctx, a.desc.Executable, a.streamArgs(prompt)...)

	var (
		sawQuota        bool
		emitted         bool
		emittedNonQuota bool
		quotaMessage    string
	)

	lines, stderr, err := streamLines(cmd, func(line string) error {
		if IsQuotaText(line) {
			sawQuota = true
		}
		if msg, tool, detail, ok := extractClaudeTool(line); ok {
			if a.guard != nil {
				if gErr := a.guard.CheckAction(ctx, a.desc.ID, tool, detail); gErr != nil {
					return gErr
				}
			}
			emit(event.WorkerEvent{Kind: event.Tool, Provider: a.desc.ID, Text: msg})
		}
		if chunk, ok := extractClaudeDelta(line); ok && strings.TrimSpace(chunk) != "" {
			if IsQuotaText(chunk) {
				sawQuota = true
				if quotaMessage == "" {
					quotaMessage = chunk
				}
				return nil
			}
			emitted = true
			emittedNonQuota = true
			emit(event.WorkerEvent{Kind: event.AgentChunk, Provider: a.desc.ID, Text: chunk})
		}
		return nil
	})

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	if err == nil {
		if sawQuota && !emittedNonQuota {
			msg := "claude quota/rate limit reached"
			if quotaMessage != "" {
				msg = "claude quota/rate limit: " + quotaMessage
			}
			return "", &QuotaError{Provider: a.desc.ID, Message: msg}
		}
		if emitted {
			return "", nil
		}
		// No deltas arrived; recover a final answer from the tail of
		// the structured stream.
		for i := len(lines) - 1; i >= 0; i-- {
			if text, ok := extractClaudeFinal(lines[i]); ok {
				if IsQuotaText(text) {
					return "", &QuotaError{Provider: a.desc.ID, Message: "claude quota/rate limit: " + text}
				}
				return text, nil
			}
		}
		var last string
		if len(lines) > 0 {
			last = lines[len(lines)-1]
		}
		if IsQuotaText(last) {
			return "", &QuotaError{Provider: a.desc.ID, Message: "claude quota/rate limit: " + last}
		}
		return last, nil
	}

	// Guard denials are decisions, not stream faults; never retried.
	if approval.IsDeniedError(err) {
		return "", err
	}

	logging.Debug().
		Str("provider", string(a.desc.ID)).
		Str("stderr", stderr).
		Msg("structured stream failed, degrading to single-shot mode")

	return a.runFallback(ctx, prompt, emit)
}

// runFallback re-invokes claude without the structured-output flags.
// Attempted at most once per run.
func (a *ClaudeAdapter) runFallback(ctx context.Context, prompt string, emit Emit) (string, error) {
	mode := a.desc.PermissionMode
	out, stderr, err := a.runPromptOnce(ctx, prompt, mode)
	if err != nil && mode == "bypassPermissions" && isRootBypassError(stderr) {
		mode = "acceptEdits"
		emit(event.WorkerEvent{
			Kind:     event.Tool,
			Provider: a.desc.ID,
			Text:     "claude bypassPermissions blocked under root; retrying with acceptEdits",
		})
		out, stderr, err = a.runPromptOnce(ctx, prompt, mode)
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("claude failed: %s", stderr)
	}
	if IsQuotaText(out) {
		return "", &QuotaError{Provider: a.desc.ID, Message: "claude quota/rate limit: " + out}
	}
	return out, nil
}

// RunOnce invokes claude in single-shot mode for preparatory calls.
func (a *ClaudeAdapter) RunOnce(ctx context.Context, prompt string) (string, error) {
	out, stderr, err := a.runPromptOnce(ctx, prompt, a.desc.PermissionMode)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("claude failed: %s", stderr)
	}
	return out, nil
}

func (a *ClaudeAdapter) runPromptOnce(ctx context.Context, prompt, mode string) (string, string, error) {
	args := []string{"--permission-mode", mode}
	args = a.appendAllowedTools(args)
	args = append(args, "-p", prompt)
	return runCaptured(newCommand(ctx, a.desc.Executable, args...))
}

func isRootBypassError(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "--dangerously-skip-permissions") &&
		(strings.Contains(t, "root") || strings.Contains(t, "sudo"))
}

// extractClaudeDelta pulls incremental assistant text from one
// stream-json line.
func extractClaudeDelta(line string) (string, bool) {
	if !gjson.Valid(line) {
		return "", false
	}
	v := gjson.Parse(line)
	if v.Get("type").String() != "stream_event" {
		return "", false
	}
	ev := v.Get("event")
	if ev.Get("type").String() != "content_block_delta" {
		return "", false
	}
	delta := ev.Get("delta")
	if dt := delta.Get("type"); dt.Exists() && dt.String() != "text_delta" {
		return "", false
	}
	text := delta.Get("text")
	if !text.Exists() {
		return "", false
	}
	return text.String(), true
}

// extractClaudeTool recognizes tool invocations in the stream and
// returns a display message plus the tool name and input preview.
func extractClaudeTool(line string) (msg, tool, detail string, ok bool) {
	if !gjson.Valid(line) {
		return "", "", "", false
	}
	v := gjson.Parse(line)
	switch v.Get("type").String() {
	case "stream_event":
		ev := v.Get("event")
		if ev.Get("type").String() != "content_block_start" {
			return "", "", "", false
		}
		cb := ev.Get("content_block")
		if cb.Get("type").String() != "tool_use" {
			return "", "", "", false
		}
		name := cb.Get("name").String()
		if name == "" {
			name = "unknown"
		}
		return "claude calling tool: " + name, name, "", true
	case "tool_use", "tool":
		name := v.Get("name").String()
		if name == "" {
			name = v.Get("tool").String()
		}
		if name == "" {
			name = "unknown"
		}
		input := v.Get("input.command").String()
		if input == "" && v.Get("input").Exists() {
			input = v.Get("input").Raw
		}
		if input == "" {
			return "claude tool: " + name, name, "", true
		}
		return "claude tool: " + name + " | " + truncate(input, 80), name, input, true
	}
	return "", "", "", false
}

// extractClaudeFinal pulls a whole-answer text from a non-delta line.
func extractClaudeFinal(line string) (string, bool) {
	if !gjson.Valid(line) {
		return "", false
	}
	v := gjson.Parse(line)
	switch v.Get("type").String() {
	case "assistant":
		for _, item := range v.Get("message.content").Array() {
			if item.Get("type").String() == "text" {
				return item.Get("text").String(), true
			}
		}
	case "result":
		if r := v.Get("result"); r.Exists() {
			return r.String(), true
		}
	}
	return "", false
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
