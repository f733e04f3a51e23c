// Package commands provides the CLI commands for dagent.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dagent-ai/dagent/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel   string
	prettyLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "dagent",
	Short: "dagent - multi-agent CLI orchestrator",
	Long: `dagent dispatches operator messages to one or more AI agent CLIs
(claude, codex) running as subprocesses, streams their normalized output,
gates risky actions behind operator approval, and fails over the primary
agent when it runs out of quota.

Run 'dagent run "your task"' to dispatch a message, with @claude/@codex
mentions to target specific agents.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if env := os.Getenv("DAGENT_LOG_LEVEL"); env != "" && !cmd.Flags().Changed("log-level") {
			logLevel = env
		}
		logging.Init(logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Pretty: prettyLogs,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty-logs", false, "Human-readable log output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("dagent %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(memCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
