package database

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quizvault/quizvault/internal/clock"
)

func newBareManager(t *testing.T) *Manager {
	t.Helper()

	m := NewManager(clock.NewMock(testEpoch))
	if err := m.Connect(DefaultConfig(filepath.Join(t.TempDir(), "bootstrap.db"))); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func testDefaultSeed(t *testing.T) *DataSeed {
	t.Helper()
	seed, err := DefaultSeed()
	if err != nil {
		t.Fatalf("failed to load default seed: %v", err)
	}
	return seed.WithHasher(testHasher())
}

func TestBootstrapIfEmpty_Idempotent(t *testing.T) {
	m := newBareManager(t)
	ctx := context.Background()
	seed := testDefaultSeed(t)

	applied, err := m.BootstrapIfEmpty(ctx, seed)
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if !applied {
		t.Fatal("expected seed to be applied on empty store")
	}

	accounts := countRows(t, m, "accounts")
	sessions := countRows(t, m, "sessions")
	if accounts != len(seed.Accounts) || sessions != len(seed.Sessions) {
		t.Fatalf("expected %d/%d rows, got %d/%d", len(seed.Accounts), len(seed.Sessions), accounts, sessions)
	}

	applied, err = m.BootstrapIfEmpty(ctx, seed)
	if err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	if applied {
		t.Fatal("expected second bootstrap to be a no-op")
	}
	if got := countRows(t, m, "accounts"); got != accounts {
		t.Fatalf("account count changed: %d -> %d", accounts, got)
	}
	if got := countRows(t, m, "sessions"); got != sessions {
		t.Fatalf("session count changed: %d -> %d", sessions, got)
	}
}

func TestBootstrapIfEmpty_PreservesRuntimeData(t *testing.T) {
	m := newBareManager(t)
	ctx := context.Background()

	if _, err := m.BootstrapIfEmpty(ctx, testDefaultSeed(t)); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	repo := NewAccountRepository(m, testHasher())
	if err := repo.Create(ctx, &Account{Username: "newcomer"}, "hunter22"); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	if _, err := m.BootstrapIfEmpty(ctx, testDefaultSeed(t)); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if !repo.VerifyPassword(ctx, "newcomer", "hunter22") {
		t.Fatal("runtime account was clobbered by bootstrap")
	}
}

func TestBootstrapIfEmpty_SeededCredentialsAreHashed(t *testing.T) {
	m := newBareManager(t)
	ctx := context.Background()

	if _, err := m.BootstrapIfEmpty(ctx, testDefaultSeed(t)); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}

	repo := NewAccountRepository(m, testHasher())
	account := repo.FindByUsername(ctx, "quizmaster")
	if account == nil {
		t.Fatal("expected seeded account")
	}
	if account.PasswordHash == "changeme-quizmaster" {
		t.Fatal("seed stored a plaintext credential")
	}
	if !account.CreatedAt.Equal(testEpoch) {
		t.Fatalf("expected created_at %v, got %v", testEpoch, account.CreatedAt)
	}
	if !repo.VerifyPassword(ctx, "quizmaster", "changeme-quizmaster") {
		t.Fatal("expected seeded credential to verify")
	}

	external := repo.FindByUsername(ctx, "night_owl")
	if external == nil || !external.IsExternal() {
		t.Fatalf("expected external seeded account, got %+v", external)
	}
}

func TestBootstrapIfEmpty_FailingSeedLeavesNoRows(t *testing.T) {
	m := newBareManager(t)
	ctx := context.Background()

	seed := (&DataSeed{
		Accounts: []SeedAccount{{Username: "alice", Password: "secret1"}},
		Sessions: []SeedSession{{Username: "ghost", StartedAt: testEpoch, EndedAt: testEpoch}},
	}).WithHasher(testHasher())

	applied, err := m.BootstrapIfEmpty(ctx, seed)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if applied {
		t.Fatal("failed seed must not report applied")
	}
	if got := countRows(t, m, "accounts"); got != 0 {
		t.Fatalf("expected no accounts after failed seed, got %d", got)
	}
	if first, _ := m.IsFirstRun(ctx); !first {
		t.Fatal("store should still be considered empty")
	}
}

func TestBootstrapIfEmpty_NilSeedAppliesSchema(t *testing.T) {
	m := newBareManager(t)
	ctx := context.Background()

	applied, err := m.BootstrapIfEmpty(ctx, nil)
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if applied {
		t.Fatal("nil seed must not report applied")
	}
	if version, err := m.SchemaVersion(ctx); err != nil || version != len(migrations) {
		t.Fatalf("expected schema version %d, got %d (%v)", len(migrations), version, err)
	}
}

func TestBootstrapIfEmpty_NotConnected(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.BootstrapIfEmpty(context.Background(), nil); !IsConnection(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestExportSeed_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src, clk := newTestManager(t)

	accounts := NewAccountRepository(src, testHasher())
	sessions := NewSessionRepository(src)

	alice := &Account{Username: "alice", Email: "o'brien@example.com"}
	if err := accounts.Create(ctx, alice, "secret1"); err != nil {
		t.Fatalf("failed to create alice: %v", err)
	}
	clk.Advance(time.Hour)
	accounts.RecordAuthentication(ctx, alice.ID)
	if _, err := accounts.UpsertExternalAccount(ctx, "gplayer", "", "google", "sub\n1"); err != nil {
		t.Fatalf("failed to upsert external account: %v", err)
	}
	for i, score := range []int{10, 30, 20} {
		session := &GameSession{
			AccountID:  alice.ID,
			StartedAt:  testEpoch,
			EndedAt:    testEpoch.Add(time.Duration(i+1) * time.Minute),
			FinalScore: score,
		}
		if err := sessions.Save(ctx, session); err != nil {
			t.Fatalf("failed to save session: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := src.ExportSeed(ctx, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if strings.Contains(buf.String(), "secret1") {
		t.Fatal("export must not contain plaintext credentials")
	}

	path := filepath.Join(t.TempDir(), "backup.sql")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("failed to write backup: %v", err)
	}
	seed, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("failed to load backup: %v", err)
	}

	dst := newBareManager(t)
	if applied, err := dst.BootstrapIfEmpty(ctx, seed); err != nil || !applied {
		t.Fatalf("failed to restore backup: applied=%v err=%v", applied, err)
	}

	restoredAccounts := NewAccountRepository(dst, testHasher())
	restoredSessions := NewSessionRepository(dst)

	if !restoredAccounts.VerifyPassword(ctx, "alice", "secret1") {
		t.Fatal("restored credential does not verify")
	}
	restored := restoredAccounts.FindByUsername(ctx, "alice")
	original := accounts.FindByUsername(ctx, "alice")
	if restored == nil || *restored.LastLoginAt != *original.LastLoginAt || restored.Email != original.Email {
		t.Fatalf("restored account differs: %+v vs %+v", restored, original)
	}
	if ext := restoredAccounts.FindByUsername(ctx, "gplayer"); ext == nil || ext.ExternalID != "sub\n1" {
		t.Fatalf("restored external account differs: %+v", ext)
	}

	want := sessions.SessionsForAccount(ctx, alice.ID)
	got := restoredSessions.SessionsForAccount(ctx, alice.ID)
	if len(got) != len(want) {
		t.Fatalf("expected %d sessions, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("session %d differs: %+v vs %+v", i, got[i], want[i])
		}
	}

	// New rows must not collide with restored ids.
	if err := restoredAccounts.Create(ctx, &Account{Username: "carol"}, "secret1"); err != nil {
		t.Fatalf("failed to create account after restore: %v", err)
	}
}

func TestLoadDataSeed_RejectsUnknownFields(t *testing.T) {
	_, err := LoadDataSeed("bad", strings.NewReader(`{"accounts": [], "players": []}`))
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSQLLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{in: nil, want: "NULL"},
		{in: "plain", want: "'plain'"},
		{in: "o'brien", want: "'o''brien'"},
		{in: "a\nb", want: "'a' || char(10) || 'b'"},
		{in: int64(42), want: "42"},
	}
	for _, tt := range tests {
		if got := sqlLiteral(tt.in); got != tt.want {
			t.Errorf("sqlLiteral(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestExportSeed_DoesNotWaitForWriters(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	accounts := NewAccountRepository(m, testHasher())
	if err := accounts.Create(ctx, &Account{Username: "alice"}, "secret1"); err != nil {
		t.Fatalf("failed to create alice: %v", err)
	}

	writing := make(chan struct{})
	release := make(chan struct{})
	writerDone := make(chan error, 1)
	go func() {
		writerDone <- m.RunInTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := insertPasswordAccount(ctx, tx, "pending", "x", "", testEpoch); err != nil {
				return err
			}
			close(writing)
			<-release
			return nil
		})
	}()
	<-writing

	exported := make(chan error, 1)
	var buf bytes.Buffer
	go func() { exported <- m.ExportSeed(ctx, &buf) }()

	select {
	case err := <-exported:
		close(release)
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal("export blocked behind an open write transaction")
	}

	if err := <-writerDone; err != nil {
		t.Fatalf("writer failed: %v", err)
	}
	if !strings.Contains(buf.String(), "'alice'") {
		t.Fatalf("export is missing committed account:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "'pending'") {
		t.Fatalf("export contains uncommitted account:\n%s", buf.String())
	}
}
