package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/quizvault/quizvault/internal/auth"
	"github.com/quizvault/quizvault/internal/clock"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestManager returns a connected, migrated manager backed by a temp file.
func newTestManager(t *testing.T) (*Manager, *clock.MockClock) {
	t.Helper()

	clk := clock.NewMock(testEpoch)
	m := NewManager(clk)
	if err := m.Connect(DefaultConfig(filepath.Join(t.TempDir(), "test.db"))); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown() })

	if err := m.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return m, clk
}

func testHasher() *auth.Hasher {
	return &auth.Hasher{Cost: bcrypt.MinCost}
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func countRows(t *testing.T, m *Manager, table string) int {
	t.Helper()
	var n int
	if err := m.queryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
