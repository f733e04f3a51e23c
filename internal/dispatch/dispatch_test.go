package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagent-ai/dagent/pkg/types"
)

var known = []types.ProviderID{types.ProviderClaude, types.ProviderCodex}

func TestResolveNoMentionsTargetsPrimary(t *testing.T) {
	plan, err := Resolve("fix the parser", types.ProviderClaude, known, true)
	require.NoError(t, err)

	assert.Equal(t, []types.ProviderID{types.ProviderClaude}, plan.Targets)
	assert.Equal(t, "fix the parser", plan.Prompt)
	assert.True(t, plan.Decompose)
	assert.False(t, plan.Multi())
}

func TestResolveSingleMention(t *testing.T) {
	plan, err := Resolve("@codex fix the parser", types.ProviderClaude, known, true)
	require.NoError(t, err)

	assert.Equal(t, []types.ProviderID{types.ProviderCodex}, plan.Targets)
	assert.Equal(t, "fix the parser", plan.Prompt)
}

func TestResolveMentionAnywhere(t *testing.T) {
	plan, err := Resolve("fix the parser @codex please", types.ProviderClaude, known, true)
	require.NoError(t, err)

	assert.Equal(t, []types.ProviderID{types.ProviderCodex}, plan.Targets)
	assert.Equal(t, "fix the parser please", plan.Prompt)
}

func TestResolveMultipleMentionsFirstSeenOrder(t *testing.T) {
	plan, err := Resolve("@codex @claude split this work", types.ProviderClaude, known, true)
	require.NoError(t, err)

	assert.Equal(t, []types.ProviderID{types.ProviderCodex, types.ProviderClaude}, plan.Targets)
	assert.Equal(t, "split this work", plan.Prompt)
	assert.True(t, plan.Multi())
}

func TestResolveDuplicateMentionsCollapse(t *testing.T) {
	plan, err := Resolve("@claude do it @claude now", types.ProviderClaude, known, true)
	require.NoError(t, err)

	assert.Equal(t, []types.ProviderID{types.ProviderClaude}, plan.Targets)
	assert.Equal(t, "do it now", plan.Prompt)
}

func TestResolveUnknownMentionStaysLiteral(t *testing.T) {
	plan, err := Resolve("email @alice about the release", types.ProviderClaude, known, true)
	require.NoError(t, err)

	assert.Equal(t, []types.ProviderID{types.ProviderClaude}, plan.Targets)
	assert.Equal(t, "email @alice about the release", plan.Prompt)
}

func TestResolveUnknownAndKnownMentions(t *testing.T) {
	plan, err := Resolve("@codex ping @alice", types.ProviderClaude, known, false)
	require.NoError(t, err)

	assert.Equal(t, []types.ProviderID{types.ProviderCodex}, plan.Targets)
	assert.Equal(t, "ping @alice", plan.Prompt)
	assert.False(t, plan.Decompose)
}

func TestResolveEmptyInput(t *testing.T) {
	_, err := Resolve("", types.ProviderClaude, known, true)
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = Resolve("   ", types.ProviderClaude, known, true)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestResolveMentionsOnly(t *testing.T) {
	_, err := Resolve("@claude @codex", types.ProviderClaude, known, true)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestResolveRespectsKnownList(t *testing.T) {
	// codex not configured: its mention is literal text.
	plan, err := Resolve("@codex try this", types.ProviderClaude, []types.ProviderID{types.ProviderClaude}, true)
	require.NoError(t, err)

	assert.Equal(t, []types.ProviderID{types.ProviderClaude}, plan.Targets)
	assert.Equal(t, "@codex try this", plan.Prompt)
}
