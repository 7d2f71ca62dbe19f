package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// RunInTransaction runs fn inside a transaction on the shared connection.
// The transaction commits when fn returns nil and rolls back when fn returns
// an error or panics; the connection is released on every path. fn must use
// tx for all statements and must not commit or roll back itself.
//
// Errors from fn are classified (see IsConstraint, IsTransient). A failed
// commit or rollback is reported as *TransactionError.
func (m *Manager) RunInTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := m.handle()
	if err != nil {
		return err
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		}
	}()

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error().Err(rbErr).AnErr("cause", fnErr).Msg("Failed to rollback transaction")
			return &TransactionError{Op: "rollback", Err: rbErr}
		}
		return classify(fnErr)
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Msg("Failed to commit transaction")
		return &TransactionError{Op: "commit", Err: err}
	}

	return nil
}

// readSnapshot runs fn inside a read-only transaction. It does not take the
// transaction lock, so writers keep going; under WAL fn sees one consistent
// snapshot of the store for its whole duration. The transaction is always
// rolled back.
func (m *Manager) readSnapshot(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := m.handle()
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", classify(err))
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn().Err(rbErr).Msg("Failed to release read transaction")
		}
	}()

	return classify(fn(tx))
}
