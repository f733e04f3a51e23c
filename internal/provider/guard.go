package provider

import (
	"context"

	"github.com/dagent-ai/dagent/internal/approval"
	"github.com/dagent-ai/dagent/pkg/types"
)

// GateGuard adapts an approval.Gate to the adapter Guard contract,
// classifying tool invocations into risk kinds and applying the
// descriptor's configured approval policy.
type GateGuard struct {
	gate *approval.Gate
	desc Descriptor
}

// NewGateGuard creates a guard for one provider descriptor.
func NewGateGuard(gate *approval.Gate, desc Descriptor) *GateGuard {
	return &GateGuard{gate: gate, desc: desc}
}

// shellTools are tool names that mean arbitrary shell execution.
var shellTools = map[string]bool{
	"Bash":        true,
	"bash":        true,
	"shell":       true,
	"exec":        true,
	"local_shell": true,
}

// editTools are tool names that modify files.
var editTools = map[string]bool{
	"Write":        true,
	"Edit":         true,
	"MultiEdit":    true,
	"NotebookEdit": true,
	"apply_patch":  true,
}

// networkTools are tool names that reach external resources.
var networkTools = map[string]bool{
	"WebFetch":   true,
	"WebSearch":  true,
	"web_search": true,
}

// classifyTool maps a tool name to a risk kind. Unlisted tools are not
// risk-classified and pass without gating.
func classifyTool(tool string) (approval.RiskKind, bool) {
	switch {
	case shellTools[tool]:
		return approval.RiskShell, true
	case editTools[tool]:
		return approval.RiskEdit, true
	case networkTools[tool]:
		return approval.RiskNetwork, true
	}
	return "", false
}

// CheckAction gates one tool invocation. Shell commands that parse
// cleanly and contain no state-changing call pass without asking; a
// command that cannot be parsed is treated as risky.
func (g *GateGuard) CheckAction(ctx context.Context, provider types.ProviderID, tool, detail string) error {
	kind, risky := classifyTool(tool)
	if !risky {
		return nil
	}

	req := approval.Request{
		Provider: provider,
		Kind:     kind,
		Title:    tool,
	}

	if kind == approval.RiskShell && detail != "" {
		req.Title = detail
		commands, err := approval.ParseShellCommand(detail)
		if err == nil {
			// Configured per-command actions override the provider policy;
			// unconfigured commands prompt only when state-changing.
			anyRisky := false
			for _, cmd := range commands {
				switch approval.MatchShellAction(cmd, g.desc.ShellActions) {
				case approval.ActionAllow:
				case approval.ActionDeny:
					return g.gate.Check(ctx, req, approval.ActionDeny)
				default:
					if approval.IsRiskyCommand(cmd.Name) {
						anyRisky = true
					}
				}
			}
			if !anyRisky {
				return nil
			}
			req.Patterns = approval.BuildPatterns(commands)
		}
	} else if kind != approval.RiskShell && approval.ToolAllowed(tool, g.desc.AllowedTools) {
		return nil
	}

	return g.gate.Check(ctx, req, approval.ParseAction(g.desc.Approval))
}
