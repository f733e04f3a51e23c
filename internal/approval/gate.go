package approval

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/dagent-ai/dagent/internal/event"
)

// Gate handles approval checks and operator decisions. Standing grants
// from "always" decisions persist for the process lifetime. A pending
// request blocks only the goroutine that asked, never siblings, and has
// no timeout: unresolved requests wait until the operator decides or the
// run's context is cancelled.
type Gate struct {
	mu       sync.RWMutex
	granted  map[RiskKind]bool
	patterns map[string]bool
	pending  map[string]chan Response
}

// NewGate creates a new approval gate.
func NewGate() *Gate {
	return &Gate{
		granted:  make(map[RiskKind]bool),
		patterns: make(map[string]bool),
		pending:  make(map[string]chan Response),
	}
}

// Check performs an approval check based on the configured action.
func (g *Gate) Check(ctx context.Context, req Request, action Action) error {
	switch action {
	case ActionAllow:
		return nil
	case ActionDeny:
		return &DeniedError{
			Provider: req.Provider,
			Kind:     req.Kind,
			Message:  "action denied by configuration",
		}
	case ActionAsk:
		return g.Ask(ctx, req)
	}
	return nil
}

// Ask suspends the caller until the operator decides.
func (g *Gate) Ask(ctx context.Context, req Request) error {
	// Standing grant for the whole kind
	g.mu.RLock()
	if g.granted[req.Kind] {
		g.mu.RUnlock()
		return nil
	}

	// Standing grants for every pattern
	if len(req.Patterns) > 0 {
		allGranted := true
		for _, p := range req.Patterns {
			if !g.patterns[p] {
				allGranted = false
				break
			}
		}
		if allGranted {
			g.mu.RUnlock()
			return nil
		}
	}
	g.mu.RUnlock()

	if req.ID == "" {
		req.ID = ulid.Make().String()
	}

	respChan := make(chan Response, 1)
	g.mu.Lock()
	g.pending[req.ID] = respChan
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pending, req.ID)
		g.mu.Unlock()
	}()

	event.Publish(event.Event{
		Type: event.ApprovalRequired,
		Data: event.ApprovalRequiredData{
			ID:       req.ID,
			Provider: req.Provider,
			Action:   string(req.Kind),
			Title:    req.Title,
			Patterns: req.Patterns,
		},
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp := <-respChan:
		switch resp.Decision {
		case DecideOnce:
			return nil
		case DecideAlways:
			g.grant(req.Kind, req.Patterns)
			return nil
		case DecideReject:
			return &DeniedError{
				Provider: req.Provider,
				Kind:     req.Kind,
				Message:  "action rejected by operator",
			}
		}
	}
	return nil
}

// Respond delivers the operator's decision for a pending request.
func (g *Gate) Respond(requestID string, decision string) {
	g.mu.RLock()
	ch, ok := g.pending[requestID]
	g.mu.RUnlock()

	if ok {
		ch <- Response{
			RequestID: requestID,
			Decision:  decision,
		}
	}

	event.Publish(event.Event{
		Type: event.ApprovalReplied,
		Data: event.ApprovalRepliedData{
			ID:       requestID,
			Response: decision,
		},
	})
}

// Pending returns the IDs of unresolved requests.
func (g *Gate) Pending() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	return ids
}

// grant records a standing permission for a kind and its patterns.
func (g *Gate) grant(kind RiskKind, patterns []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.granted[kind] = true
	for _, p := range patterns {
		g.patterns[p] = true
	}
}

// IsGranted checks if a risk kind has a standing grant.
func (g *Gate) IsGranted(kind RiskKind) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.granted[kind]
}

// IsPatternGranted checks if a specific pattern has a standing grant.
func (g *Gate) IsPatternGranted(pattern string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.patterns[pattern]
}

// GrantPattern explicitly records a standing grant for a pattern.
func (g *Gate) GrantPattern(pattern string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.patterns[pattern] = true
}

// Clear drops all standing grants.
func (g *Gate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.granted = make(map[RiskKind]bool)
	g.patterns = make(map[string]bool)
}
