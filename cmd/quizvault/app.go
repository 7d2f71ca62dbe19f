package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quizvault/quizvault/internal/auth"
	"github.com/quizvault/quizvault/internal/config"
	"github.com/quizvault/quizvault/internal/database"
	"github.com/quizvault/quizvault/internal/logging"
)

// app bundles the store and repositories shared by every command.
type app struct {
	cfg      *config.Config
	db       *database.Manager
	accounts *database.AccountRepository
	sessions *database.SessionRepository
}

// loadConfig reads the environment, applies explicitly set flags and
// configures logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = dbPath
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Apply(logging.LevelForVerbosity(verbosity), cfg.Log)
	return cfg, nil
}

// openApp connects the process-wide manager and applies pending migrations.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db := database.Default()
	if err := db.Connect(cfg.Database()); err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Shutdown()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	policy := cfg.RetryPolicy()
	accounts := database.NewAccountRepository(db, auth.DefaultHasher())
	accounts.SetRetryPolicy(policy)
	sessions := database.NewSessionRepository(db)
	sessions.SetRetryPolicy(policy)

	return &app{cfg: cfg, db: db, accounts: accounts, sessions: sessions}, nil
}

func (a *app) close() {
	if err := a.db.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Failed to close database")
	}
}

// resolveSeed returns the seed named by path, falling back to the configured
// seed file and then the embedded demo seed. noSeed disables seeding.
func resolveSeed(cfg *config.Config, path string, noSeed bool) (database.SeedSource, error) {
	if noSeed {
		return nil, nil
	}
	if path == "" {
		path = cfg.SeedFile
	}
	if path != "" {
		return database.LoadSeedFile(path)
	}
	return database.DefaultSeed()
}

// bootstrap seeds an empty store and logs the outcome.
func (a *app) bootstrap(ctx context.Context, seed database.SeedSource) (bool, error) {
	applied, err := a.db.BootstrapIfEmpty(ctx, seed)
	if err != nil {
		return false, err
	}
	log.Info().
		Bool("seeded", applied).
		Int("accounts", a.accounts.Count(ctx)).
		Int("sessions", a.sessions.TotalSessionCount(ctx)).
		Msg("Store ready")
	return applied, nil
}
