package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dagent-ai/dagent/internal/config"
	"github.com/dagent-ai/dagent/internal/session"
	"github.com/dagent-ai/dagent/internal/storage"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := config.GetPaths()
		if err := paths.EnsurePaths(); err != nil {
			return err
		}
		recorder := session.NewRecorder(storage.New(paths.StoragePath()))

		ids, err := recorder.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("no sessions recorded")
			return nil
		}
		for _, id := range ids {
			tr, err := recorder.Load(cmd.Context(), id)
			if err != nil {
				continue
			}
			updated := ""
			if tr.UpdatedAt > 0 {
				updated = time.Unix(tr.UpdatedAt, 0).Format(time.RFC3339)
			}
			fmt.Printf("%s  %d entries  %s\n", id, len(tr.Entries), updated)
		}
		return nil
	},
}
