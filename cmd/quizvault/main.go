package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	dbPath    string
	logFile   string
	verbosity int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "quizvault",
		Short:        "QuizVault - Quiz game score store",
		Long:         `QuizVault stores quiz players and their game sessions and serves leaderboards over HTTP.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite database path (or set QUIZVAULT_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Rotating log file path (or set QUIZVAULT_LOG_FILE)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	rootCmd.AddCommand(
		newServeCmd(),
		newBootstrapCmd(),
		newLeaderboardCmd(),
		newExportSeedCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "quizvault %s (commit: %s, built: %s)\n", version, commit, date)
			},
		},
	)

	return rootCmd
}
