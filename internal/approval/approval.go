// Package approval gates risky provider actions behind operator confirmation.
package approval

import "github.com/dagent-ai/dagent/pkg/types"

// Action represents the configured policy for a risk-classified action.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
	ActionAsk   Action = "ask"
)

// ParseAction maps a config string to an Action, defaulting to ask.
func ParseAction(s string) Action {
	switch Action(s) {
	case ActionAllow, ActionDeny, ActionAsk:
		return Action(s)
	}
	return ActionAsk
}

// RiskKind classifies the category of action being gated.
type RiskKind string

const (
	RiskShell   RiskKind = "shell"
	RiskEdit    RiskKind = "edit"
	RiskNetwork RiskKind = "network"
)

// Request represents one pending approval decision.
type Request struct {
	ID       string           `json:"id"`
	Provider types.ProviderID `json:"provider"`
	Kind     RiskKind         `json:"kind"`
	Patterns []string         `json:"patterns,omitempty"`
	Title    string           `json:"title"`
}

// Response represents the operator's decision on a request.
type Response struct {
	RequestID string `json:"requestID"`
	Decision  string `json:"decision"` // "once" | "always" | "reject"
}

const (
	DecideOnce   = "once"
	DecideAlways = "always"
	DecideReject = "reject"
)

// DeniedError is returned when an action is denied. It is a normal
// decision outcome, not a fault: callers decide whether the run can
// proceed without the denied action.
type DeniedError struct {
	Provider types.ProviderID
	Kind     RiskKind
	Message  string
}

func (e *DeniedError) Error() string {
	return e.Message
}

// IsDeniedError checks if an error is an approval denial.
func IsDeniedError(err error) bool {
	_, ok := err.(*DeniedError)
	return ok
}
