// Package failover decides when the primary provider is reassigned after
// a quota failure.
package failover

import (
	"sync"

	"github.com/dagent-ai/dagent/internal/provider"
	"github.com/dagent-ai/dagent/pkg/types"
)

// Promotion names the alternate that becomes the new primary and why.
type Promotion struct {
	To     types.ProviderID
	Reason string
}

// Policy holds the degraded-provider set accumulated over a process
// lifetime. It is one-shot per provider: once demoted for quota
// exhaustion, a provider is never promoted back automatically.
type Policy struct {
	mu       sync.Mutex
	degraded map[types.ProviderID]bool
}

// NewPolicy creates a failover policy with no degraded providers.
func NewPolicy() *Policy {
	return &Policy{degraded: make(map[types.ProviderID]bool)}
}

// OnProviderError evaluates one provider failure. A promotion is issued
// only when the failing provider is the current primary, the error
// classifies as quota/rate-limit exhaustion, and another configured
// provider is available and not itself degraded. The failed run is not
// retried: the next dispatch uses the new primary.
func (p *Policy) OnProviderError(failed types.ProviderID, err error, available []types.ProviderID, currentPrimary types.ProviderID) *Promotion {
	if err == nil || failed != currentPrimary {
		return nil
	}
	if !provider.IsQuotaError(err) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.degraded[failed] = true

	for _, id := range available {
		if id == failed || p.degraded[id] {
			continue
		}
		return &Promotion{To: id, Reason: err.Error()}
	}
	return nil
}

// IsDegraded reports whether a provider has been demoted for quota
// exhaustion.
func (p *Policy) IsDegraded(id types.ProviderID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded[id]
}

// Restore clears a provider's degraded mark. Operator-triggered only.
func (p *Policy) Restore(id types.ProviderID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.degraded, id)
}
