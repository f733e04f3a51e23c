package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagent-ai/dagent/internal/event"
	"github.com/dagent-ai/dagent/pkg/types"
)

func TestCheckAllow(t *testing.T) {
	gate := NewGate()
	err := gate.Check(context.Background(), Request{
		Provider: types.ProviderClaude,
		Kind:     RiskShell,
		Title:    "run ls",
	}, ActionAllow)
	assert.NoError(t, err)
}

func TestCheckDeny(t *testing.T) {
	gate := NewGate()
	err := gate.Check(context.Background(), Request{
		Provider: types.ProviderClaude,
		Kind:     RiskShell,
		Title:    "run rm",
	}, ActionDeny)
	require.Error(t, err)
	assert.True(t, IsDeniedError(err))
}

func TestAskOnce(t *testing.T) {
	event.Reset()
	defer event.Reset()

	gate := NewGate()
	req := Request{
		ID:       "req-1",
		Provider: types.ProviderClaude,
		Kind:     RiskShell,
		Title:    "run rm -rf build",
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var askErr error
	go func() {
		defer wg.Done()
		askErr = gate.Ask(context.Background(), req)
	}()

	// Wait until the request is pending, then approve once.
	require.Eventually(t, func() bool {
		return len(gate.Pending()) == 1
	}, time.Second, 5*time.Millisecond)

	gate.Respond("req-1", DecideOnce)
	wg.Wait()

	assert.NoError(t, askErr)
	// "once" leaves no standing grant
	assert.False(t, gate.IsGranted(RiskShell))
}

func TestAskAlwaysRecordsStandingGrant(t *testing.T) {
	event.Reset()
	defer event.Reset()

	gate := NewGate()
	req := Request{
		ID:       "req-2",
		Provider: types.ProviderCodex,
		Kind:     RiskShell,
		Patterns: []string{"git push *"},
		Title:    "git push origin main",
	}

	done := make(chan error, 1)
	go func() {
		done <- gate.Ask(context.Background(), req)
	}()

	require.Eventually(t, func() bool {
		return len(gate.Pending()) == 1
	}, time.Second, 5*time.Millisecond)

	gate.Respond("req-2", DecideAlways)
	require.NoError(t, <-done)

	assert.True(t, gate.IsGranted(RiskShell))
	assert.True(t, gate.IsPatternGranted("git push *"))

	// Same kind no longer suspends.
	err := gate.Ask(context.Background(), Request{
		Provider: types.ProviderCodex,
		Kind:     RiskShell,
		Title:    "git push origin dev",
	})
	assert.NoError(t, err)
}

func TestAskReject(t *testing.T) {
	event.Reset()
	defer event.Reset()

	gate := NewGate()
	done := make(chan error, 1)
	go func() {
		done <- gate.Ask(context.Background(), Request{
			ID:       "req-3",
			Provider: types.ProviderClaude,
			Kind:     RiskShell,
			Title:    "rm -rf /",
		})
	}()

	require.Eventually(t, func() bool {
		return len(gate.Pending()) == 1
	}, time.Second, 5*time.Millisecond)

	gate.Respond("req-3", DecideReject)
	err := <-done
	require.Error(t, err)
	assert.True(t, IsDeniedError(err))
}

func TestAskCancelledContext(t *testing.T) {
	event.Reset()
	defer event.Reset()

	gate := NewGate()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- gate.Ask(ctx, Request{
			ID:       "req-4",
			Provider: types.ProviderClaude,
			Kind:     RiskShell,
			Title:    "run make",
		})
	}()

	require.Eventually(t, func() bool {
		return len(gate.Pending()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAskPublishesBusEvents(t *testing.T) {
	event.Reset()
	defer event.Reset()

	var mu sync.Mutex
	var seen []event.EventType
	event.Subscribe(event.ApprovalRequired, func(e event.Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()

		data := e.Data.(event.ApprovalRequiredData)
		assert.Equal(t, "req-5", data.ID)
		assert.Equal(t, string(RiskShell), data.Action)
	})

	gate := NewGate()
	done := make(chan error, 1)
	go func() {
		done <- gate.Ask(context.Background(), Request{
			ID:       "req-5",
			Provider: types.ProviderClaude,
			Kind:     RiskShell,
			Title:    "curl example.com",
		})
	}()

	require.Eventually(t, func() bool {
		return len(gate.Pending()) == 1
	}, time.Second, 5*time.Millisecond)

	gate.Respond("req-5", DecideOnce)
	require.NoError(t, <-done)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMatchShellAction(t *testing.T) {
	actions := map[string]Action{
		"git *":         ActionAllow,
		"rm *":          ActionDeny,
		"npm install *": ActionAsk,
		"*":             ActionAsk,
	}

	tests := []struct {
		name     string
		cmd      ShellCommand
		expected Action
	}{
		{
			name:     "git allowed",
			cmd:      ShellCommand{Name: "git", Subcommand: "commit"},
			expected: ActionAllow,
		},
		{
			name:     "rm denied",
			cmd:      ShellCommand{Name: "rm", Args: []string{"-rf", "dir"}},
			expected: ActionDeny,
		},
		{
			name:     "npm install ask",
			cmd:      ShellCommand{Name: "npm", Subcommand: "install", Args: []string{"install", "express"}},
			expected: ActionAsk,
		},
		{
			name:     "unknown command defaults to global wildcard",
			cmd:      ShellCommand{Name: "unknown"},
			expected: ActionAsk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MatchShellAction(tt.cmd, actions))
		})
	}
}

func TestParseShellCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    []ShellCommand
	}{
		{
			name:    "simple command",
			command: "ls -la",
			want:    []ShellCommand{{Name: "ls", Args: []string{"-la"}}},
		},
		{
			name:    "subcommand",
			command: "git commit -m 'message'",
			want:    []ShellCommand{{Name: "git", Args: []string{"commit", "-m", "message"}, Subcommand: "commit"}},
		},
		{
			name:    "pipe yields both calls",
			command: "cat file.txt | grep foo",
			want: []ShellCommand{
				{Name: "cat", Args: []string{"file.txt"}, Subcommand: "file.txt"},
				{Name: "grep", Args: []string{"foo"}, Subcommand: "foo"},
			},
		},
		{
			name:    "and chain",
			command: "mkdir out && mv a.txt out",
			want: []ShellCommand{
				{Name: "mkdir", Args: []string{"out"}, Subcommand: "out"},
				{Name: "mv", Args: []string{"a.txt", "out"}, Subcommand: "a.txt"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseShellCommand(tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseShellCommandInvalid(t *testing.T) {
	_, err := ParseShellCommand("if then fi")
	assert.Error(t, err)
}

func TestBuildPatterns(t *testing.T) {
	commands := []ShellCommand{
		{Name: "git", Subcommand: "push"},
		{Name: "git", Subcommand: "push"},
		{Name: "ls"},
	}
	assert.Equal(t, []string{"git push *", "ls *"}, BuildPatterns(commands))
}

func TestIsRiskyCommand(t *testing.T) {
	assert.True(t, IsRiskyCommand("rm"))
	assert.True(t, IsRiskyCommand("sudo"))
	assert.False(t, IsRiskyCommand("ls"))
}

func TestToolAllowed(t *testing.T) {
	allowed := []string{"Read", "Bash(git diff:*)", "mcp__*"}

	assert.True(t, ToolAllowed("Read", allowed))
	assert.True(t, ToolAllowed("Bash", allowed))
	assert.True(t, ToolAllowed("mcp__filesystem", allowed))
	assert.False(t, ToolAllowed("Write", allowed))
	assert.False(t, ToolAllowed("anything", nil))
}
