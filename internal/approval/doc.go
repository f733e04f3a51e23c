// Package approval implements the gate that suspends a provider run when
// a risk-classified action is detected and resumes it on the operator's
// decision.
//
// # Gate
//
// The Gate is a state machine per request: a check is either resolved
// immediately by configuration (allow or deny), or transitions to pending
// and blocks the calling goroutine until Respond delivers a decision.
// Only the asking run is suspended; sibling runs and the coordinator keep
// flowing. Pending requests have no timeout.
//
// Decisions:
//   - once: permits exactly the pending action
//   - always: additionally records a standing grant for the action kind
//     and its patterns for the remainder of the process lifetime
//   - reject: aborts the specific action with a DeniedError
//
// # Shell classification
//
// Shell commands are parsed with mvdan.cc/sh into structured calls so
// that compound commands (pipes, && chains) are gated per call. Grant
// patterns take the form "git push *"; configuration maps patterns to
// allow/deny/ask actions with most-specific-first matching.
//
// Pending and resolved requests are announced on the event bus so a
// frontend can render prompts and other processes can observe outcomes.
package approval
