package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagent-ai/dagent/internal/approval"
	"github.com/dagent-ai/dagent/pkg/types"
)

func newShellGuard(shellActions map[string]approval.Action, policy string) *GateGuard {
	desc := NewDescriptor(types.ProviderClaude, types.ProviderConfig{})
	desc.Approval = policy
	desc.ShellActions = shellActions
	return NewGateGuard(approval.NewGate(), desc)
}

func TestCheckActionUnclassifiedToolPasses(t *testing.T) {
	guard := newShellGuard(nil, "deny")
	assert.NoError(t, guard.CheckAction(context.Background(), types.ProviderClaude, "Read", ""))
}

func TestCheckActionHarmlessCommandPasses(t *testing.T) {
	guard := newShellGuard(nil, "deny")
	assert.NoError(t, guard.CheckAction(context.Background(), types.ProviderClaude, "Bash", "ls -la"))
}

func TestCheckActionRiskyCommandFollowsPolicy(t *testing.T) {
	guard := newShellGuard(nil, "deny")
	err := guard.CheckAction(context.Background(), types.ProviderClaude, "Bash", "rm -rf build")
	require.Error(t, err)
	assert.True(t, approval.IsDeniedError(err))

	guard = newShellGuard(nil, "allow")
	assert.NoError(t, guard.CheckAction(context.Background(), types.ProviderClaude, "Bash", "rm -rf build"))
}

func TestCheckActionConfiguredDenyWins(t *testing.T) {
	guard := newShellGuard(map[string]approval.Action{"git push *": approval.ActionDeny}, "allow")
	err := guard.CheckAction(context.Background(), types.ProviderClaude, "Bash", "git push origin main")
	require.Error(t, err)
	assert.True(t, approval.IsDeniedError(err))
}

func TestCheckActionConfiguredAllowSkipsGate(t *testing.T) {
	// a blocking "ask" policy would suspend; the configured allow must
	// short-circuit before the gate is consulted
	guard := newShellGuard(map[string]approval.Action{"curl *": approval.ActionAllow}, "ask")
	assert.NoError(t, guard.CheckAction(context.Background(), types.ProviderClaude, "Bash", "curl https://example.com"))
}

func TestCheckActionDenyAppliesPerCommandInCompound(t *testing.T) {
	guard := newShellGuard(map[string]approval.Action{"rm *": approval.ActionDeny}, "allow")
	err := guard.CheckAction(context.Background(), types.ProviderClaude, "Bash", "mkdir out && rm -rf out")
	require.Error(t, err)
	assert.True(t, approval.IsDeniedError(err))
}

func TestNewDescriptorParsesCommandActions(t *testing.T) {
	desc := NewDescriptor(types.ProviderCodex, types.ProviderConfig{
		Commands: map[string]string{
			"git push *": "deny",
			"ls *":       "allow",
			"weird *":    "banana",
		},
	})
	assert.Equal(t, approval.ActionDeny, desc.ShellActions["git push *"])
	assert.Equal(t, approval.ActionAllow, desc.ShellActions["ls *"])
	// unknown spellings fall back to ask
	assert.Equal(t, approval.ActionAsk, desc.ShellActions["weird *"])
}

func TestCheckActionEditToolRespectsAllowedTools(t *testing.T) {
	desc := NewDescriptor(types.ProviderClaude, types.ProviderConfig{
		AllowedTools: []string{"Edit"},
		Approval:     "deny",
	})
	guard := NewGateGuard(approval.NewGate(), desc)

	assert.NoError(t, guard.CheckAction(context.Background(), types.ProviderClaude, "Edit", ""))

	err := guard.CheckAction(context.Background(), types.ProviderClaude, "Write", "")
	require.Error(t, err)
	assert.True(t, approval.IsDeniedError(err))
}
