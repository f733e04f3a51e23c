// Package orchestrator executes dispatch plans. It runs one adapter per
// targeted provider in parallel, fans their events into a single ordered
// stream, and applies the cross-provider policies on that stream:
// progress deduplication, failover promotion and result aggregation.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dagent-ai/dagent/internal/dispatch"
	"github.com/dagent-ai/dagent/internal/event"
	"github.com/dagent-ai/dagent/internal/failover"
	"github.com/dagent-ai/dagent/internal/logging"
	"github.com/dagent-ai/dagent/internal/memory"
	"github.com/dagent-ai/dagent/internal/provider"
	"github.com/dagent-ai/dagent/internal/session"
	"github.com/dagent-ai/dagent/internal/skill"
	"github.com/dagent-ai/dagent/pkg/types"
)

const eventBuffer = 64

// coordMarker prefixes cross-provider notices in a multi-agent run.
const coordMarker = "[coord] "

// runState tracks one provider's lifecycle within a plan.
type runState int

const (
	runNotStarted runState = iota
	runStreaming
	runDone
	runErrored
	runCancelled
)

// envelope is the fan-in unit. Exactly one of ev and res is set. Worker
// goroutines only produce envelopes; every cross-provider decision is
// made by the single consumer loop.
type envelope struct {
	ev  *event.WorkerEvent
	res *runResult
}

// runResult is one provider's write-once terminal outcome.
type runResult struct {
	provider types.ProviderID
	final    string
	err      error
}

// Coordinator owns concurrent plan execution and the process-wide
// current-primary value.
type Coordinator struct {
	registry *provider.Registry
	policy   *failover.Policy
	cfg      *types.Config

	memory   *memory.Store
	skills   *skill.Store
	recorder *session.Recorder

	mu      sync.Mutex
	primary types.ProviderID
}

// Option configures optional collaborators on a Coordinator.
type Option func(*Coordinator)

// WithMemory attaches the shared session memory used to prefix prompts
// and record turns.
func WithMemory(store *memory.Store) Option {
	return func(c *Coordinator) { c.memory = store }
}

// WithSkills attaches the skill store used to inject relevant skills
// into prompts.
func WithSkills(store *skill.Store) Option {
	return func(c *Coordinator) { c.skills = store }
}

// WithRecorder attaches the transcript recorder.
func WithRecorder(rec *session.Recorder) Option {
	return func(c *Coordinator) { c.recorder = rec }
}

// New creates a coordinator. The initial primary comes from the config,
// falling back to claude.
func New(registry *provider.Registry, policy *failover.Policy, cfg *types.Config, opts ...Option) *Coordinator {
	primary := cfg.Primary
	if primary == "" {
		primary = types.ProviderClaude
	}
	c := &Coordinator{
		registry: registry,
		policy:   policy,
		cfg:      cfg,
		primary:  primary,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Primary returns the current primary provider. Failover promotions
// update it for subsequent dispatches.
func (c *Coordinator) Primary() types.ProviderID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.primary
}

func (c *Coordinator) setPrimary(id types.ProviderID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.primary = id
}

// Run executes a plan and returns its ordered event stream. The stream
// ends with exactly one terminal event (Done, Cancelled, or an Error
// with no provider set) and is then closed. The caller must drain the
// channel. Cancelling ctx kills every subprocess of the plan; the
// terminal event is emitted only after all runs have stopped.
func (c *Coordinator) Run(ctx context.Context, sessionID string, plan *dispatch.Plan) <-chan event.WorkerEvent {
	out := make(chan event.WorkerEvent, eventBuffer)
	go c.run(ctx, sessionID, plan, out)
	return out
}

func (c *Coordinator) run(ctx context.Context, sessionID string, plan *dispatch.Plan, out chan<- event.WorkerEvent) {
	defer close(out)

	targets, missing := c.availableTargets(plan.Targets)
	if len(targets) == 0 {
		out <- event.WorkerEvent{Kind: event.Error, Text: unavailableMessage(plan.Targets, missing)}
		return
	}

	c.recordUser(ctx, sessionID, plan.Prompt)

	multi := len(targets) > 1
	dedup := newProgressDedup(c.dedupWindow())
	forward := func(ev event.WorkerEvent) {
		if multi {
			switch ev.Kind {
			case event.Progress:
				if dedup.Suppress(ev.Text, time.Now()) {
					return
				}
			case event.Tool:
				if ev.Provider == "" {
					ev.Coordination = true
					if !strings.HasPrefix(ev.Text, coordMarker) {
						ev.Text = coordMarker + ev.Text
					}
				}
			}
		}
		out <- ev
	}

	prompts := c.buildPrompts(ctx, sessionID, plan, targets, forward)

	inbox := make(chan envelope, eventBuffer)
	var wg sync.WaitGroup
	for _, id := range targets {
		wg.Add(1)
		go func(id types.ProviderID) {
			defer wg.Done()
			c.runProvider(ctx, id, prompts[id], inbox)
		}(id)
	}
	go func() {
		wg.Wait()
		close(inbox)
	}()

	// Single consumer: owns dedup state, the current primary and the
	// aggregate result. No locks needed beyond the channels.
	states := make(map[types.ProviderID]runState, len(targets))
	finals := make(map[types.ProviderID]string, len(targets))
	streamed := make(map[types.ProviderID]*strings.Builder, len(targets))
	var firstErr error

	for env := range inbox {
		if env.ev != nil {
			switch env.ev.Kind {
			case event.AgentStart:
				states[env.ev.Provider] = runStreaming
			case event.AgentChunk:
				b := streamed[env.ev.Provider]
				if b == nil {
					b = &strings.Builder{}
					streamed[env.ev.Provider] = b
				}
				b.WriteString(env.ev.Text)
			}
			forward(*env.ev)
			continue
		}

		res := env.res
		switch {
		case res.err == nil:
			states[res.provider] = runDone
			final := strings.TrimSpace(res.final)
			if final != "" {
				forward(event.WorkerEvent{Kind: event.AgentChunk, Provider: res.provider, Text: final})
			} else if b := streamed[res.provider]; b != nil {
				// the answer arrived as chunks; keep the accumulated text
				// for the aggregate result and the transcript
				final = strings.TrimSpace(b.String())
			}
			finals[res.provider] = final
			if final != "" {
				c.recordAssistant(ctx, sessionID, res.provider, final)
			}
		case ctx.Err() != nil:
			// killed by plan cancellation, whatever the subprocess
			// error surfaced as
			states[res.provider] = runCancelled
		default:
			states[res.provider] = runErrored
			if firstErr == nil {
				firstErr = res.err
			}
			if promo := c.policy.OnProviderError(res.provider, res.err, targets, c.Primary()); promo != nil {
				c.setPrimary(promo.To)
				forward(event.WorkerEvent{Kind: event.PromotePrimary, To: promo.To, Reason: promo.Reason})
			}
			forward(event.WorkerEvent{
				Kind:     event.AgentChunk,
				Provider: res.provider,
				Text:     fmt.Sprintf("%s error: %v", res.provider, res.err),
			})
		}
	}

	switch {
	case ctx.Err() != nil:
		out <- event.WorkerEvent{Kind: event.Cancelled}
	case anySuccess(states):
		out <- event.WorkerEvent{Kind: event.Done, Text: mergeFinals(targets, finals)}
	default:
		msg := "all available agents failed for this request"
		if firstErr != nil {
			msg = firstErr.Error()
		}
		out <- event.WorkerEvent{Kind: event.Error, Text: msg}
	}
}

// runProvider is one plan worker. It emits AgentStart, streams the
// adapter's events, reports its write-once result, then emits AgentDone.
func (c *Coordinator) runProvider(ctx context.Context, id types.ProviderID, prompt string, inbox chan<- envelope) {
	send := func(env envelope) { inbox <- env }

	send(envelope{ev: &event.WorkerEvent{Kind: event.AgentStart, Provider: id}})
	defer send(envelope{ev: &event.WorkerEvent{Kind: event.AgentDone, Provider: id}})

	adapter, err := c.registry.Get(id)
	if err != nil {
		send(envelope{res: &runResult{provider: id, err: err}})
		return
	}

	final, err := adapter.Run(ctx, prompt, func(ev event.WorkerEvent) {
		send(envelope{ev: &ev})
	})
	send(envelope{res: &runResult{provider: id, final: final, err: err}})
}

// buildPrompts computes the per-provider prompt text: a decomposed
// assignment when multi-agent decomposition succeeds, otherwise the
// shared prompt for every target. The memory- and skill-enriched text
// is built once up front so decomposition plans over the same context
// the agents will see.
func (c *Coordinator) buildPrompts(ctx context.Context, sessionID string, plan *dispatch.Plan, targets []types.ProviderID, forward func(event.WorkerEvent)) map[types.ProviderID]string {
	prompts := make(map[types.ProviderID]string, len(targets))
	enriched := c.enrichPrompt(ctx, sessionID, plan.Prompt)

	if len(targets) > 1 && plan.Decompose {
		forward(event.WorkerEvent{Kind: event.Tool, Text: "decomposing task for multi-agent dispatch..."})
		if tasks := c.decompose(ctx, enriched, targets, forward); tasks != nil {
			forward(event.WorkerEvent{Kind: event.Tool, Text: "task decomposed, dispatching to agents..."})
			forward(event.WorkerEvent{Kind: event.Tool, Text: formatDecompositionSummary(tasks, targets)})
			for _, id := range targets {
				prompts[id] = buildAgentPrompt(enriched, id, tasks[id], tasks, targets)
			}
			return prompts
		}
		forward(event.WorkerEvent{Kind: event.Tool, Text: "task decomposition failed, using unified dispatch"})
	}

	for _, id := range targets {
		prompts[id] = enriched
	}
	return prompts
}

// enrichPrompt prefixes the shared session memory context and injects
// relevant skills. Both collaborators are best-effort.
func (c *Coordinator) enrichPrompt(ctx context.Context, sessionID, prompt string) string {
	enriched := prompt
	if c.memory != nil {
		built, err := c.memory.BuildContext(ctx, sessionID, prompt)
		if err != nil {
			logging.Warn().Err(err).Msg("memory context build failed")
		} else {
			enriched = built
		}
	}
	if c.skills != nil {
		enriched = c.skills.Inject(ctx, prompt, enriched)
	}
	return enriched
}

func (c *Coordinator) recordUser(ctx context.Context, sessionID, prompt string) {
	if c.memory != nil {
		if err := c.memory.AppendMessage(ctx, sessionID, "user", "", prompt); err != nil {
			logging.Warn().Err(err).Msg("memory write failed")
		}
	}
	if c.recorder != nil {
		if _, err := c.recorder.Append(ctx, sessionID, "user", "", prompt); err != nil {
			logging.Warn().Err(err).Msg("transcript write failed")
		}
	}
}

func (c *Coordinator) recordAssistant(ctx context.Context, sessionID string, id types.ProviderID, text string) {
	if c.memory != nil {
		if err := c.memory.AppendMessage(ctx, sessionID, "assistant", string(id), text); err != nil {
			logging.Warn().Err(err).Msg("memory write failed")
		}
	}
	if c.recorder != nil {
		if _, err := c.recorder.Append(ctx, sessionID, "assistant", id, text); err != nil {
			logging.Warn().Err(err).Msg("transcript write failed")
		}
	}
}

// availableTargets filters the plan's targets down to providers whose
// executable resolves on PATH, preserving plan order.
func (c *Coordinator) availableTargets(planned []types.ProviderID) (targets, missing []types.ProviderID) {
	available := make(map[types.ProviderID]bool)
	for _, id := range c.registry.Available() {
		available[id] = true
	}
	for _, id := range planned {
		if available[id] {
			targets = append(targets, id)
		} else {
			missing = append(missing, id)
		}
	}
	return targets, missing
}

func unavailableMessage(planned, missing []types.ProviderID) string {
	if len(planned) == 1 {
		return fmt.Sprintf("%s not available on PATH", planned[0])
	}
	names := make([]string, len(missing))
	for i, id := range missing {
		names[i] = string(id)
	}
	return "requested agents not available on PATH: " + strings.Join(names, ",")
}

func anySuccess(states map[types.ProviderID]runState) bool {
	for _, st := range states {
		if st == runDone {
			return true
		}
	}
	return false
}

// mergeFinals concatenates the successful providers' final text in plan
// order. A single section stays unlabeled; multiple sections carry a
// provider label each.
func mergeFinals(targets []types.ProviderID, finals map[types.ProviderID]string) string {
	var sections []string
	for _, id := range targets {
		if text := finals[id]; text != "" {
			sections = append(sections, fmt.Sprintf("[%s]\n%s", id, text))
		}
	}
	if len(sections) == 1 {
		for _, id := range targets {
			if text := finals[id]; text != "" {
				return text
			}
		}
	}
	return strings.Join(sections, "\n\n")
}

func (c *Coordinator) dedupWindow() time.Duration {
	if c.cfg != nil && c.cfg.DedupWindowSeconds > 0 {
		return time.Duration(c.cfg.DedupWindowSeconds) * time.Second
	}
	return defaultDedupWindow
}

func (c *Coordinator) decomposeTimeout() time.Duration {
	if c.cfg != nil && c.cfg.DecomposeTimeoutSeconds > 0 {
		return time.Duration(c.cfg.DecomposeTimeoutSeconds) * time.Second
	}
	return defaultDecomposeTimeout
}
