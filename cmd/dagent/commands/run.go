package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dagent-ai/dagent/internal/approval"
	"github.com/dagent-ai/dagent/internal/config"
	"github.com/dagent-ai/dagent/internal/dispatch"
	"github.com/dagent-ai/dagent/internal/event"
	"github.com/dagent-ai/dagent/internal/failover"
	"github.com/dagent-ai/dagent/internal/logging"
	"github.com/dagent-ai/dagent/internal/memory"
	"github.com/dagent-ai/dagent/internal/orchestrator"
	"github.com/dagent-ai/dagent/internal/provider"
	"github.com/dagent-ai/dagent/internal/session"
	"github.com/dagent-ai/dagent/internal/skill"
	"github.com/dagent-ai/dagent/internal/storage"
	"github.com/dagent-ai/dagent/pkg/types"
)

var (
	runSession     string
	runContinue    bool
	runPrimary     string
	runNoDecompose bool
	runAutoApprove bool
	runDir         string
)

var runCmd = &cobra.Command{
	Use:   "run <message...>",
	Short: "Dispatch a message to the configured agents",
	Long: `Dispatch a message to one or more agents and stream their output.

Mentions route the message: "@claude" and "@codex" anywhere in the text
target those agents; without mentions the configured primary handles it.

Examples:
  dagent run "Fix the bug in main.go"
  dagent run "@claude review the diff"
  dagent run "@claude @codex ship the feature"
  dagent run --continue "and now add tests"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDispatch,
}

func init() {
	runCmd.Flags().StringVarP(&runSession, "session", "s", "", "Session ID to use")
	runCmd.Flags().BoolVarP(&runContinue, "continue", "c", false, "Continue the most recent session")
	runCmd.Flags().StringVar(&runPrimary, "primary", "", "Primary provider (claude|codex)")
	runCmd.Flags().BoolVar(&runNoDecompose, "no-decompose", false, "Send the identical prompt to every targeted agent")
	runCmd.Flags().BoolVarP(&runAutoApprove, "yes", "y", false, "Approve all risky actions without prompting")
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if runPrimary != "" {
		id, ok := types.ParseProviderID(runPrimary)
		if !ok {
			return fmt.Errorf("unknown provider %q", runPrimary)
		}
		cfg.Primary = id
	}
	decompose := cfg.DecompositionEnabled() && !runNoDecompose

	store := storage.New(paths.StoragePath())
	recorder := session.NewRecorder(store)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []orchestrator.Option
	opts = append(opts, orchestrator.WithRecorder(recorder))

	mem, err := memory.Open(paths.MemoryPath())
	if err != nil {
		logging.Warn().Err(err).Msg("session memory unavailable")
	} else {
		defer mem.Close()
		opts = append(opts, orchestrator.WithMemory(mem))
	}

	skills, err := skill.Open(paths.SkillsPath())
	if err != nil {
		logging.Warn().Err(err).Msg("skill store unavailable")
	} else {
		defer skills.Close()
		if err := skills.Watch(); err != nil {
			logging.Warn().Err(err).Msg("skill hot reload unavailable")
		}
		opts = append(opts, orchestrator.WithSkills(skills))
	}

	gate := approval.NewGate()
	reg := provider.FromConfig(cfg, func(desc provider.Descriptor) provider.Guard {
		return provider.NewGateGuard(gate, desc)
	})

	stopApprover := startApprover(gate, runAutoApprove)
	defer stopApprover()

	coord := orchestrator.New(reg, failover.NewPolicy(), cfg, opts...)

	sessionID, err := resolveSessionID(cmd, recorder)
	if err != nil {
		return err
	}

	message := strings.Join(args, " ")
	plan, err := dispatch.Resolve(message, coord.Primary(), reg.IDs(), decompose)
	if err != nil {
		return err
	}

	return streamRun(ctx, coord, sessionID, plan)
}

func resolveSessionID(cmd *cobra.Command, recorder *session.Recorder) (string, error) {
	if runSession != "" {
		return runSession, nil
	}
	if runContinue {
		latest, err := recorder.Latest(cmd.Context())
		if err != nil {
			return "", err
		}
		if latest != "" {
			return latest, nil
		}
	}
	return session.NewSessionID(), nil
}

func streamRun(ctx context.Context, coord *orchestrator.Coordinator, sessionID string, plan *dispatch.Plan) error {
	multi := plan.Multi()
	var runErr error

	for ev := range coord.Run(ctx, sessionID, plan) {
		switch ev.Kind {
		case event.AgentStart:
			fmt.Fprintf(os.Stderr, "[%s] started\n", ev.Provider)
		case event.AgentDone:
			fmt.Fprintf(os.Stderr, "[%s] done\n", ev.Provider)
		case event.AgentChunk:
			if multi {
				fmt.Printf("[%s] %s\n", ev.Provider, ev.Text)
			} else {
				fmt.Println(ev.Text)
			}
		case event.Tool, event.Progress:
			fmt.Fprintf(os.Stderr, "  %s\n", ev.Text)
		case event.PromotePrimary:
			fmt.Fprintf(os.Stderr, "primary auto-switched to %s (%s)\n", ev.To, ev.Reason)
		case event.Done:
			// per-provider chunks already printed the content
		case event.Cancelled:
			fmt.Fprintln(os.Stderr, "cancelled")
		case event.Error:
			if ev.Provider == "" {
				runErr = fmt.Errorf("%s", ev.Text)
			} else {
				fmt.Fprintf(os.Stderr, "[%s] error: %s\n", ev.Provider, ev.Text)
			}
		}
	}
	return runErr
}
