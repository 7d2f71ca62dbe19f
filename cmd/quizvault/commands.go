package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quizvault/quizvault/internal/database"
)

func newBootstrapCmd() *cobra.Command {
	var (
		seedPath string
		noSeed   bool
	)

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the schema and seed an empty store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			seed, err := resolveSeed(cfg, seedPath, noSeed)
			if err != nil {
				return err
			}
			applied, err := a.bootstrap(ctx, seed)
			if err != nil {
				return err
			}

			switch {
			case applied:
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %s: %d accounts, %d sessions\n",
					seed.Name(), a.accounts.Count(ctx), a.sessions.TotalSessionCount(ctx))
			case seed == nil:
				fmt.Fprintln(cmd.OutOrStdout(), "schema ready; seeding disabled")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "store already populated; nothing to do")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&seedPath, "seed", "", "Seed file (.json or .sql); defaults to the built-in demo seed")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Only create the schema")

	return cmd
}

func newLeaderboardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the top scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			return printLeaderboard(cmd.OutOrStdout(), a.sessions.TopScores(ctx, limit))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of entries to show")

	return cmd
}

func printLeaderboard(w io.Writer, entries []database.LeaderboardEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPLAYER\tSCORE\tQUESTIONS\tFINISHED")
	for i, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n",
			i+1, e.Username, e.FinalScore, e.QuestionsAnswered, e.EndedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func newExportSeedCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export-seed",
		Short: "Write all accounts and sessions as a replayable SQL seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if out == "" || out == "-" {
				return a.db.ExportSeed(ctx, cmd.OutOrStdout())
			}
			return exportToFile(ctx, a.db, out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")

	return cmd
}

func exportToFile(ctx context.Context, db *database.Manager, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := db.ExportSeed(ctx, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("Seed written")
	return nil
}
