package database

import (
	"context"
	"database/sql"
)

// handle returns the live connection or ErrNotConnected.
func (m *Manager) handle() (*sql.DB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.conn == nil {
		return nil, ErrNotConnected
	}
	return m.conn, nil
}

// row defers a connection failure to Scan, like *sql.Row does for query errors.
type row struct {
	row *sql.Row
	err error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return r.row.Scan(dest...)
}

func (m *Manager) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn, err := m.handle()
	if err != nil {
		return nil, err
	}
	return conn.ExecContext(ctx, query, args...)
}

func (m *Manager) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	conn, err := m.handle()
	if err != nil {
		return nil, err
	}
	return conn.QueryContext(ctx, query, args...)
}

func (m *Manager) queryRow(ctx context.Context, query string, args ...any) row {
	conn, err := m.handle()
	if err != nil {
		return row{err: err}
	}
	return row{row: conn.QueryRowContext(ctx, query, args...)}
}
