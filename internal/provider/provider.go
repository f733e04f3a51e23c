// Package provider implements the per-provider protocol adapters and the
// registry of configured agent CLIs.
package provider

import (
	"context"

	"github.com/dagent-ai/dagent/internal/approval"
	"github.com/dagent-ai/dagent/internal/event"
	"github.com/dagent-ai/dagent/pkg/types"
)

// Descriptor is the static identity and configuration of one provider.
// Built once at startup from defaults and overrides, read-only thereafter.
type Descriptor struct {
	ID             types.ProviderID
	Executable     string
	PermissionMode string   // claude --permission-mode
	AllowedTools   []string // claude --allowedTools
	ApprovalPolicy string   // codex --ask-for-approval
	SandboxMode    string   // codex -s
	Approval       string   // gate policy: allow | deny | ask

	// ShellActions maps shell command patterns to a gate action that
	// overrides Approval for matching commands.
	ShellActions map[string]approval.Action
}

// NewDescriptor builds a descriptor for a known provider, applying the
// provider family's defaults where the config is silent.
func NewDescriptor(id types.ProviderID, cfg types.ProviderConfig) Descriptor {
	d := Descriptor{
		ID:             id,
		Executable:     cfg.Executable,
		PermissionMode: cfg.PermissionMode,
		AllowedTools:   cfg.AllowedTools,
		ApprovalPolicy: cfg.ApprovalPolicy,
		SandboxMode:    cfg.SandboxMode,
		Approval:       cfg.Approval,
	}

	if d.Executable == "" {
		d.Executable = string(id)
	}
	if d.Approval == "" {
		d.Approval = "ask"
	}
	if len(cfg.Commands) > 0 {
		d.ShellActions = make(map[string]approval.Action, len(cfg.Commands))
		for pattern, action := range cfg.Commands {
			d.ShellActions[pattern] = approval.ParseAction(action)
		}
	}

	switch id {
	case types.ProviderClaude:
		if d.PermissionMode == "" {
			d.PermissionMode = "acceptEdits"
		}
		if d.AllowedTools == nil {
			d.AllowedTools = []string{"Bash"}
		}
	case types.ProviderCodex:
		if d.ApprovalPolicy == "" {
			d.ApprovalPolicy = "never"
		}
		if d.SandboxMode == "" {
			d.SandboxMode = "danger-full-access"
		}
	}

	return d
}

// Emit receives normalized events from a running adapter as they are
// produced. Implementations must not block for long: the adapter's read
// loop stalls while Emit runs.
type Emit func(ev event.WorkerEvent)

// Guard is consulted before a risk-classified subprocess action is let
// through. A blocking implementation suspends exactly the calling run.
type Guard interface {
	// CheckAction returns nil to let the action proceed. The detail is
	// the raw action text (a shell command line or tool input preview).
	CheckAction(ctx context.Context, provider types.ProviderID, tool, detail string) error
}

// Adapter is the streaming protocol contract every provider implements.
type Adapter interface {
	// ID reports which provider this adapter drives.
	ID() types.ProviderID

	// Run spawns the provider executable for one prompt and streams
	// normalized events through emit until the subprocess terminates.
	// The returned text is the final answer when it was not already
	// streamed as chunks; empty when chunks covered it. Cancelling ctx
	// kills the subprocess and its descendants.
	Run(ctx context.Context, prompt string, emit Emit) (string, error)

	// RunOnce invokes the provider in single-shot mode, without the
	// structured-output flag, and returns the whole captured output.
	// Used for preparatory calls such as task decomposition.
	RunOnce(ctx context.Context, prompt string) (string, error)
}
