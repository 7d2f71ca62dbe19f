package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Migrate applies every schema migration not yet recorded in
// schema_migrations. Each migration runs in its own transaction, so running
// Migrate on an up-to-date store is a no-op.
func (m *Manager) Migrate(ctx context.Context) error {
	log.Debug().Msg("Running database migrations")

	_, err := m.exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", classify(err))
	}

	var currentVersion int
	err = m.queryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", classify(err))
	}

	log.Debug().Int("current_version", currentVersion).Msg("Current schema version")

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		log.Info().Int("version", migration.Version).Str("name", migration.Name).Msg("Applying migration")

		if err := m.RunInTransaction(ctx, func(tx *sql.Tx) error {
			statements := splitSQLStatements(migration.SQL)
			for i, stmt := range statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %d statement %d failed: %w", migration.Version, i+1, err)
				}
			}

			// OR IGNORE tolerates a concurrent migrator that recorded the version first.
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				migration.Version, toMillis(m.Now()),
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}

			return nil
		}); err != nil {
			return err
		}
	}

	log.Debug().Msg("Database migrations complete")
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (m *Manager) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := m.queryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", classify(err))
	}
	return version, nil
}

type migration struct {
	Version int
	Name    string
	SQL     string
}

// splitSQLStatements splits a SQL string into individual statements.
// It handles comments and only returns non-empty statements.
func splitSQLStatements(sql string) []string {
	var statements []string
	var current strings.Builder

	lines := strings.Split(sql, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" && stmt != ";" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	// Handle any remaining content without trailing semicolon
	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		statements = append(statements, remaining)
	}

	return statements
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "initial_schema",
		SQL: `
			-- Player identities. Password accounts carry a bcrypt hash,
			-- external accounts carry a provider/external_id pair.
			CREATE TABLE IF NOT EXISTS accounts (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL UNIQUE CHECK (length(username) BETWEEN 3 AND 50),
				password_hash TEXT,
				email TEXT,
				provider TEXT,
				external_id TEXT,
				created_at INTEGER NOT NULL,
				last_login INTEGER,
				CHECK (password_hash IS NOT NULL OR (provider IS NOT NULL AND external_id IS NOT NULL))
			);

			CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_external
				ON accounts(provider, external_id);

			-- Completed play-throughs, immutable once written
			CREATE TABLE IF NOT EXISTS sessions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				start_time INTEGER NOT NULL,
				end_time INTEGER,
				final_score INTEGER NOT NULL DEFAULT 0 CHECK (final_score >= 0),
				questions_answered INTEGER NOT NULL DEFAULT 0 CHECK (questions_answered >= 0),
				CHECK (end_time IS NULL OR end_time >= start_time)
			);
		`,
	},
	{
		Version: 2,
		Name:    "leaderboard_indexes",
		SQL: `
			CREATE INDEX IF NOT EXISTS idx_sessions_score
				ON sessions(final_score DESC, end_time ASC);

			CREATE INDEX IF NOT EXISTS idx_sessions_account
				ON sessions(account_id, final_score DESC);
		`,
	},
}
