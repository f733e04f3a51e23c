package event

import "github.com/dagent-ai/dagent/pkg/types"

// Kind tags one normalized unit of output from a provider run or from the
// run coordinator itself.
type Kind string

const (
	// AgentStart marks the beginning of one provider run.
	AgentStart Kind = "agent.start"
	// AgentChunk carries incremental assistant text for one provider.
	AgentChunk Kind = "agent.chunk"
	// AgentDone marks the end of one provider run, success or not.
	AgentDone Kind = "agent.done"
	// Tool describes a side-effecting action the provider is taking.
	Tool Kind = "tool"
	// Progress is a transient status line for one provider.
	Progress Kind = "progress"
	// PromotePrimary announces a failover promotion of the default provider.
	PromotePrimary Kind = "promote.primary"
	// Done is the plan-level terminal event carrying the merged result text.
	Done Kind = "done"
	// Cancelled is the plan-level terminal event after operator cancellation.
	Cancelled Kind = "cancelled"
	// Error carries a per-provider failure, or the plan-level terminal
	// failure when no provider field is set.
	Error Kind = "error"
)

// WorkerEvent is one unit of the coordinator's ordered output stream.
// Events for the same provider preserve emission order; events across
// providers interleave by arrival time. Immutable once emitted.
type WorkerEvent struct {
	Kind     Kind             `json:"kind"`
	Provider types.ProviderID `json:"provider,omitempty"`

	// Text holds chunk text, tool/progress messages, the merged final
	// text (Done) or the failure message (Error).
	Text string `json:"text,omitempty"`

	// To and Reason are set on PromotePrimary.
	To     types.ProviderID `json:"to,omitempty"`
	Reason string           `json:"reason,omitempty"`

	// Coordination marks a cross-provider notice that survived progress
	// deduplication in a multi-agent plan.
	Coordination bool `json:"coordination,omitempty"`
}

// Terminal reports whether the event ends the whole plan.
func (e WorkerEvent) Terminal() bool {
	switch e.Kind {
	case Done, Cancelled:
		return true
	case Error:
		return e.Provider == ""
	}
	return false
}

// ApprovalRequiredData is the data for approval.required events.
type ApprovalRequiredData struct {
	ID       string           `json:"id"`
	Provider types.ProviderID `json:"provider"`
	Action   string           `json:"action"`
	Title    string           `json:"title"`
	Patterns []string         `json:"patterns,omitempty"`
}

// ApprovalRepliedData is the data for approval.replied events.
type ApprovalRepliedData struct {
	ID       string `json:"id"`
	Response string `json:"response"` // "once" | "always" | "reject"
}

// TranscriptAppendedData is the data for transcript.appended events.
type TranscriptAppendedData struct {
	SessionID string `json:"sessionID"`
	EntryID   string `json:"entryID"`
}
