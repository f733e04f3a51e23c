package failover

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dagent-ai/dagent/internal/provider"
	"github.com/dagent-ai/dagent/pkg/types"
)

var quotaErr = &provider.QuotaError{Provider: types.ProviderClaude, Message: "claude quota/rate limit reached"}

func TestPromotesOnPrimaryQuotaError(t *testing.T) {
	policy := NewPolicy()
	available := []types.ProviderID{types.ProviderClaude, types.ProviderCodex}

	promotion := policy.OnProviderError(types.ProviderClaude, quotaErr, available, types.ProviderClaude)
	require.NotNil(t, promotion)
	assert.Equal(t, types.ProviderCodex, promotion.To)
	assert.Equal(t, "claude quota/rate limit reached", promotion.Reason)
	assert.True(t, policy.IsDegraded(types.ProviderClaude))
}

func TestNoPromotionWhenNotPrimary(t *testing.T) {
	policy := NewPolicy()
	available := []types.ProviderID{types.ProviderClaude, types.ProviderCodex}

	promotion := policy.OnProviderError(types.ProviderCodex, quotaErr, available, types.ProviderClaude)
	assert.Nil(t, promotion)
}

func TestNoPromotionOnNonQuotaError(t *testing.T) {
	policy := NewPolicy()
	available := []types.ProviderID{types.ProviderClaude, types.ProviderCodex}

	promotion := policy.OnProviderError(types.ProviderClaude, errors.New("process exited 1"), available, types.ProviderClaude)
	assert.Nil(t, promotion)
	assert.False(t, policy.IsDegraded(types.ProviderClaude))
}

func TestNoPromotionWithoutAlternate(t *testing.T) {
	policy := NewPolicy()

	promotion := policy.OnProviderError(types.ProviderClaude, quotaErr, []types.ProviderID{types.ProviderClaude}, types.ProviderClaude)
	assert.Nil(t, promotion)
	// Still records the degradation.
	assert.True(t, policy.IsDegraded(types.ProviderClaude))
}

func TestDegradedAlternateSkipped(t *testing.T) {
	policy := NewPolicy()
	available := []types.ProviderID{types.ProviderClaude, types.ProviderCodex}

	// Codex degrades first.
	codexErr := &provider.QuotaError{Provider: types.ProviderCodex, Message: "codex quota/rate limit: usage limit"}
	_ = policy.OnProviderError(types.ProviderCodex, codexErr, available, types.ProviderCodex)
	require.True(t, policy.IsDegraded(types.ProviderCodex))

	// Claude's quota failure has nowhere to promote to.
	promotion := policy.OnProviderError(types.ProviderClaude, quotaErr, available, types.ProviderClaude)
	assert.Nil(t, promotion)
}

func TestRestoreClearsDegradedMark(t *testing.T) {
	policy := NewPolicy()
	available := []types.ProviderID{types.ProviderClaude, types.ProviderCodex}

	_ = policy.OnProviderError(types.ProviderClaude, quotaErr, available, types.ProviderClaude)
	require.True(t, policy.IsDegraded(types.ProviderClaude))

	policy.Restore(types.ProviderClaude)
	assert.False(t, policy.IsDegraded(types.ProviderClaude))
}
