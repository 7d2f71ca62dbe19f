package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// BootstrapIfEmpty applies the schema and then seed, but only when the
// accounts table is missing or empty. On a populated store it is a no-op, so
// runtime-created accounts and sessions survive restarts. It reports whether
// the seed was applied.
//
// The emptiness check and the seed are not atomic with each other; only one
// process should bootstrap a store at a time. The seed itself is applied in a
// single transaction, so a failing seed leaves no rows behind.
func (m *Manager) BootstrapIfEmpty(ctx context.Context, seed SeedSource) (bool, error) {
	empty, err := m.IsFirstRun(ctx)
	if err != nil {
		return false, err
	}
	if !empty {
		log.Debug().Msg("Store already populated; skipping bootstrap")
		return false, nil
	}

	if err := m.Migrate(ctx); err != nil {
		return false, fmt.Errorf("failed to apply schema: %w", err)
	}

	if seed == nil {
		log.Info().Msg("Schema applied; no seed configured")
		return false, nil
	}

	now := m.Now()
	if err := m.RunInTransaction(ctx, func(tx *sql.Tx) error {
		return seed.Apply(ctx, tx, now)
	}); err != nil {
		return false, fmt.Errorf("failed to apply seed %s: %w", seed.Name(), err)
	}

	log.Info().Str("seed", seed.Name()).Msg("Bootstrapped empty store")
	return true, nil
}
