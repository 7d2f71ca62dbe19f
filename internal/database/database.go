package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"

	"github.com/quizvault/quizvault/internal/clock"
)

const (
	DefaultMaxOpenConns = 4
	DefaultBusyTimeout  = 5 * time.Second

	retryPaceInterval = 20 * time.Millisecond
	retryPaceBurst    = 5
)

// Config describes how to reach the backing store.
type Config struct {
	// Path is the SQLite database file.
	Path string
	// MaxOpenConns bounds the pool behind the single logical handle.
	MaxOpenConns int
	// BusyTimeout is how long the driver waits on a locked database
	// before reporting SQLITE_BUSY.
	BusyTimeout time.Duration
}

// DefaultConfig returns the default store configuration for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		MaxOpenConns: DefaultMaxOpenConns,
		BusyTimeout:  DefaultBusyTimeout,
	}
}

func (c Config) dsn() string {
	busy := c.BusyTimeout
	if busy <= 0 {
		busy = DefaultBusyTimeout
	}
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Set("_txlock", "immediate")
	return c.Path + "?" + params.Encode()
}

// Manager owns the process's single handle to the backing store. All
// repositories borrow the handle through the manager and never close it.
type Manager struct {
	mu   sync.RWMutex // guards conn and cfg
	conn *sql.DB
	cfg  Config

	// txMu serializes transactional units so at most one transaction is in
	// flight on the connection. Plain reads do not take it.
	txMu sync.Mutex

	clock        clock.Clock
	retryLimiter *rate.Limiter
}

// NewManager creates a manager with no connection. Call Connect before use.
func NewManager(clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.New()
	}
	return &Manager{
		clock:        clk,
		retryLimiter: rate.NewLimiter(rate.Every(retryPaceInterval), retryPaceBurst),
	}
}

// Connect opens and verifies the store connection. It does not retry.
func (m *Manager) Connect(cfg Config) error {
	if strings.TrimSpace(cfg.Path) == "" {
		return &ConnectionError{Op: "connect", Err: fmt.Errorf("database path is required")}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return &ConnectionError{Op: "connect", Err: fmt.Errorf("already connected to %s", m.cfg.Path)}
	}

	conn, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return &ConnectionError{Op: "connect", Err: fmt.Errorf("failed to open database: %w", err)}
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return &ConnectionError{Op: "connect", Err: fmt.Errorf("failed to ping database: %w", err)}
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpenConns
	}
	// WAL allows concurrent readers; writers are serialized by SQLite and txMu.
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxOpen)

	m.conn = conn
	m.cfg = cfg

	log.Debug().Str("path", cfg.Path).Int("max_open_conns", maxOpen).Msg("Database connection established")
	return nil
}

// IsConnected reports whether a live connection handle exists.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn != nil
}

// Shutdown releases the connection. Operations fail with ErrNotConnected
// until Connect is called again.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn == nil {
		return nil
	}

	// Let an in-flight transaction finish before closing underneath it.
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Debug().Msg("Database connection closed")
	return nil
}

// Path returns the database file path, or "" when not connected.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.conn == nil {
		return ""
	}
	return m.cfg.Path
}

// Now returns the manager clock's current time.
func (m *Manager) Now() time.Time {
	return m.clock.Now()
}

// IsFirstRun reports whether the accounts table is missing or empty.
func (m *Manager) IsFirstRun(ctx context.Context) (bool, error) {
	var tables int
	err := m.queryRow(ctx, `
		SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'accounts'
	`).Scan(&tables)
	if err != nil {
		return false, fmt.Errorf("failed to check accounts table: %w", classify(err))
	}
	if tables == 0 {
		return true, nil
	}

	var count int
	if err := m.queryRow(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count accounts: %w", classify(err))
	}
	return count == 0, nil
}
