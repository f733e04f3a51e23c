package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dagent-ai/dagent/internal/approval"
	"github.com/dagent-ai/dagent/internal/event"
)

// startApprover wires the operator side of the approval gate: it
// answers approval.required bus events by prompting on the terminal,
// or by granting everything when autoApprove is set. Returns an
// unsubscribe function.
func startApprover(gate *approval.Gate, autoApprove bool) func() {
	var mu sync.Mutex
	reader := bufio.NewReader(os.Stdin)

	return event.Subscribe(event.ApprovalRequired, func(ev event.Event) {
		req, ok := ev.Data.(event.ApprovalRequiredData)
		if !ok {
			return
		}
		if autoApprove {
			gate.Respond(req.ID, approval.DecideAlways)
			return
		}

		// one prompt at a time
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(os.Stderr, "\napproval required (%s): %s %s\n", req.Provider, req.Action, req.Title)
		if len(req.Patterns) > 0 {
			fmt.Fprintf(os.Stderr, "  commands: %s\n", strings.Join(req.Patterns, ", "))
		}
		fmt.Fprint(os.Stderr, "allow once [y], always [a], deny [n]: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			gate.Respond(req.ID, approval.DecideReject)
			return
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes", "once":
			gate.Respond(req.ID, approval.DecideOnce)
		case "a", "always":
			gate.Respond(req.ID, approval.DecideAlways)
		default:
			gate.Respond(req.ID, approval.DecideReject)
		}
	})
}
