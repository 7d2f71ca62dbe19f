package database

import (
	"context"
	"fmt"
)

// Optimize runs SQLite's PRAGMA optimize to refresh planner stats.
func (m *Manager) Optimize(ctx context.Context) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if _, err := m.exec(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to optimize database: %w", classify(err))
	}

	return nil
}

// Vacuum rebuilds the database file to reclaim unused space.
func (m *Manager) Vacuum(ctx context.Context) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if _, err := m.exec(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", classify(err))
	}

	return nil
}

// Checkpoint folds the write-ahead log back into the main database file.
func (m *Manager) Checkpoint(ctx context.Context) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if _, err := m.exec(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint database: %w", classify(err))
	}

	return nil
}
