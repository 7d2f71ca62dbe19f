package database

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ExportSeed writes every account and session as INSERT statements that
// LoadSQLSeed can replay into an empty store. Rows keep their ids so session
// ownership survives the round trip. The dump reads from one snapshot and
// therefore reflects a single point in time; concurrent writes are not
// blocked while it runs.
func (m *Manager) ExportSeed(ctx context.Context, w io.Writer) error {
	bw := bufio.NewWriter(w)
	var accounts, sessions int

	err := m.readSnapshot(ctx, func(tx *sql.Tx) error {
		fmt.Fprintf(bw, "-- quizvault seed exported %s\n", m.Now().UTC().Format("2006-01-02T15:04:05Z"))

		var err error
		if accounts, err = exportAccounts(ctx, tx, bw); err != nil {
			return err
		}
		sessions, err = exportSessions(ctx, tx, bw)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to export seed: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write seed: %w", err)
	}

	log.Info().Int("accounts", accounts).Int("sessions", sessions).Msg("Exported seed")
	return nil
}

func exportAccounts(ctx context.Context, tx *sql.Tx, w io.Writer) (int, error) {
	rows, err := tx.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY id")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id                                      int64
			username                                string
			passwordHash, email, provider, external sql.NullString
			createdAt                               int64
			lastLogin                               sql.NullInt64
		)
		if err := rows.Scan(&id, &username, &passwordHash, &email, &provider, &external, &createdAt, &lastLogin); err != nil {
			return n, err
		}
		fmt.Fprintf(w,
			"INSERT INTO accounts (%s) VALUES (%d, %s, %s, %s, %s, %s, %d, %s);\n",
			accountColumns, id, sqlLiteral(username), sqlLiteral(passwordHash), sqlLiteral(email),
			sqlLiteral(provider), sqlLiteral(external), createdAt, sqlLiteral(lastLogin),
		)
		n++
	}
	return n, rows.Err()
}

func exportSessions(ctx context.Context, tx *sql.Tx, w io.Writer) (int, error) {
	rows, err := tx.QueryContext(ctx, "SELECT "+sessionColumns+" FROM sessions s ORDER BY s.id")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			id, accountID, startTime int64
			endTime                  sql.NullInt64
			score, answered          int
		)
		if err := rows.Scan(&id, &accountID, &startTime, &endTime, &score, &answered); err != nil {
			return n, err
		}
		fmt.Fprintf(w,
			"INSERT INTO sessions (id, account_id, start_time, end_time, final_score, questions_answered) VALUES (%d, %d, %d, %s, %d, %d);\n",
			id, accountID, startTime, sqlLiteral(endTime), score, answered,
		)
		n++
	}
	return n, rows.Err()
}

// sqlLiteral renders v as a SQLite literal. Newlines are emitted through
// char(10) so every statement stays on one line.
func sqlLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case sql.NullString:
		if !x.Valid {
			return "NULL"
		}
		return sqlLiteral(x.String)
	case sql.NullInt64:
		if !x.Valid {
			return "NULL"
		}
		return strconv.FormatInt(x.Int64, 10)
	case string:
		parts := strings.Split(x, "\n")
		for i, p := range parts {
			parts[i] = "'" + strings.ReplaceAll(p, "'", "''") + "'"
		}
		return strings.Join(parts, " || char(10) || ")
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	panic(fmt.Sprintf("sqlLiteral: unsupported type %T", v))
}
