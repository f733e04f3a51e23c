package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dagent-ai/dagent/internal/config"
	"github.com/dagent-ai/dagent/internal/memory"
	"github.com/dagent-ai/dagent/internal/session"
	"github.com/dagent-ai/dagent/internal/storage"
)

var (
	memSession string
	memKeep    int
)

var memCmd = &cobra.Command{
	Use:   "mem",
	Short: "Inspect and maintain shared session memory",
}

var memShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show recent memory entries for a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, sessionID, err := openMemory(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		lines, err := store.RecentLines(cmd.Context(), sessionID, 20)
		if err != nil {
			return err
		}
		count, err := store.Count(cmd.Context(), sessionID)
		if err != nil {
			return err
		}
		fmt.Printf("session %s: %d entries\n", sessionID, count)
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	},
}

var memFindCmd = &cobra.Command{
	Use:   "find <query...>",
	Short: "Search memory entries for a session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, sessionID, err := openMemory(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		lines, err := store.SearchLines(cmd.Context(), sessionID, strings.Join(args, " "), 20)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			fmt.Println("no matches")
			return nil
		}
		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	},
}

var memPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop all but the newest memory entries for a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, sessionID, err := openMemory(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		dropped, err := store.Prune(cmd.Context(), sessionID, memKeep)
		if err != nil {
			return err
		}
		fmt.Printf("pruned %d entries, kept %d\n", dropped, memKeep)
		return nil
	},
}

var memClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all memory entries for a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, sessionID, err := openMemory(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(cmd.Context(), sessionID); err != nil {
			return err
		}
		fmt.Printf("cleared memory for session %s\n", sessionID)
		return nil
	},
}

func init() {
	memCmd.PersistentFlags().StringVarP(&memSession, "session", "s", "", "Session ID (defaults to the most recent session)")
	memPruneCmd.Flags().IntVar(&memKeep, "keep", 50, "Number of newest entries to keep")

	memCmd.AddCommand(memShowCmd)
	memCmd.AddCommand(memFindCmd)
	memCmd.AddCommand(memPruneCmd)
	memCmd.AddCommand(memClearCmd)
}

// openMemory opens the memory store and resolves the target session,
// falling back to the most recently updated transcript.
func openMemory(cmd *cobra.Command) (*memory.Store, string, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, "", err
	}

	sessionID := memSession
	if sessionID == "" {
		recorder := session.NewRecorder(storage.New(paths.StoragePath()))
		latest, err := recorder.Latest(cmd.Context())
		if err != nil {
			return nil, "", err
		}
		if latest == "" {
			return nil, "", fmt.Errorf("no sessions recorded yet; pass --session")
		}
		sessionID = latest
	}

	store, err := memory.Open(paths.MemoryPath())
	if err != nil {
		return nil, "", err
	}
	return store, sessionID, nil
}
