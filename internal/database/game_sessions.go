package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrInvalidSession is returned for session values that violate the
// score, answer-count or timing invariants.
var ErrInvalidSession = errors.New("invalid game session")

// GameSession is one completed play-through. Sessions are never updated
// after they are saved.
type GameSession struct {
	ID                int64     `json:"id"`
	AccountID         int64     `json:"account_id"`
	StartedAt         time.Time `json:"started_at"`
	EndedAt           time.Time `json:"ended_at"`
	FinalScore        int       `json:"final_score"`
	QuestionsAnswered int       `json:"questions_answered"`
}

// LeaderboardEntry is a session joined with its owner's username.
type LeaderboardEntry struct {
	GameSession
	Username string `json:"username"`
}

func (s *GameSession) validate() error {
	switch {
	case s.AccountID <= 0:
		return fmt.Errorf("%w: account id is required", ErrInvalidSession)
	case s.FinalScore < 0:
		return fmt.Errorf("%w: negative final score %d", ErrInvalidSession, s.FinalScore)
	case s.QuestionsAnswered < 0:
		return fmt.Errorf("%w: negative questions answered %d", ErrInvalidSession, s.QuestionsAnswered)
	case s.StartedAt.IsZero() || s.EndedAt.IsZero():
		return fmt.Errorf("%w: start and end times are required", ErrInvalidSession)
	case s.EndedAt.Before(s.StartedAt):
		return fmt.Errorf("%w: end time before start time", ErrInvalidSession)
	}
	return nil
}

func insertSession(ctx context.Context, tx *sql.Tx, s *GameSession) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (account_id, start_time, end_time, final_score, questions_answered)
		VALUES (?, ?, ?, ?, ?)
	`, s.AccountID, toMillis(s.StartedAt), toMillis(s.EndedAt), s.FinalScore, s.QuestionsAnswered)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// leaderboardPrealloc bounds the up-front allocation for TopScores; the
// limit itself may be arbitrarily large.
const leaderboardPrealloc = 100

const sessionColumns = `s.id, s.account_id, s.start_time, s.end_time, s.final_score, s.questions_answered`

func scanSession(scan func(dest ...any) error, extra ...any) (GameSession, error) {
	var s GameSession
	var startTime int64
	var endTime sql.NullInt64

	dest := append([]any{&s.ID, &s.AccountID, &startTime, &endTime, &s.FinalScore, &s.QuestionsAnswered}, extra...)
	if err := scan(dest...); err != nil {
		return GameSession{}, err
	}

	s.StartedAt = fromMillis(startTime)
	if endTime.Valid {
		s.EndedAt = fromMillis(endTime.Int64)
	}
	return s, nil
}

// SessionRepository stores completed game sessions and answers leaderboard
// queries.
type SessionRepository struct {
	db    *Manager
	retry RetryPolicy
}

// NewSessionRepository creates a session repository.
func NewSessionRepository(db *Manager) *SessionRepository {
	return &SessionRepository{
		db:    db,
		retry: DefaultRetryPolicy(),
	}
}

// SetRetryPolicy overrides the policy used by read paths.
func (r *SessionRepository) SetRetryPolicy(policy RetryPolicy) {
	r.retry = policy
}

// Save inserts the session inside a transaction and sets session.ID.
// Timestamps are stored with millisecond precision in UTC. A session whose
// account does not exist yields ErrAccountNotFound and writes nothing.
func (r *SessionRepository) Save(ctx context.Context, session *GameSession) error {
	if session == nil {
		return fmt.Errorf("%w: session is nil", ErrInvalidSession)
	}
	if err := session.validate(); err != nil {
		return err
	}
	if !r.db.IsConnected() {
		log.Warn().Int64("account_id", session.AccountID).Msg("Cannot save session: database not connected")
		return ErrNotConnected
	}

	var id int64
	err := r.db.RunInTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertSession(ctx, tx, session)
		return err
	})
	if err != nil {
		if kind, ok := constraintKind(err); ok && kind == ConstraintForeignKey {
			log.Debug().Int64("account_id", session.AccountID).Msg("Session rejected: unknown account")
			return fmt.Errorf("%w: %d: %w", ErrAccountNotFound, session.AccountID, err)
		}
		log.Error().Err(err).Int64("account_id", session.AccountID).Msg("Failed to save session")
		return fmt.Errorf("failed to save session: %w", err)
	}

	session.ID = id
	session.StartedAt = fromMillis(toMillis(session.StartedAt))
	session.EndedAt = fromMillis(toMillis(session.EndedAt))
	return nil
}

// TopScores returns up to limit sessions across all accounts, highest score
// first; equal scores rank the earlier finish higher.
func (r *SessionRepository) TopScores(ctx context.Context, limit int) []LeaderboardEntry {
	if limit <= 0 || !r.db.IsConnected() {
		return []LeaderboardEntry{}
	}

	entries, err := RunWithRetry(ctx, r.db, r.retry, "top_scores", func() ([]LeaderboardEntry, error) {
		rows, err := r.db.query(ctx, `
			SELECT `+sessionColumns+`, a.username
			FROM sessions s
			JOIN accounts a ON a.id = s.account_id
			ORDER BY s.final_score DESC, s.end_time ASC, s.id ASC
			LIMIT ?
		`, limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		entries := make([]LeaderboardEntry, 0, min(limit, leaderboardPrealloc))
		for rows.Next() {
			var username string
			s, err := scanSession(rows.Scan, &username)
			if err != nil {
				return nil, err
			}
			entries = append(entries, LeaderboardEntry{GameSession: s, Username: username})
		}
		return entries, rows.Err()
	})
	if err != nil {
		log.Error().Err(err).Int("limit", limit).Msg("Failed to load leaderboard")
		return []LeaderboardEntry{}
	}
	return entries
}

// SessionsForAccount returns every session of the account, highest score
// first; equal scores list the most recent finish first.
func (r *SessionRepository) SessionsForAccount(ctx context.Context, accountID int64) []GameSession {
	if !r.db.IsConnected() {
		return []GameSession{}
	}

	sessions, err := RunWithRetry(ctx, r.db, r.retry, "sessions_for_account", func() ([]GameSession, error) {
		rows, err := r.db.query(ctx, `
			SELECT `+sessionColumns+`
			FROM sessions s
			WHERE s.account_id = ?
			ORDER BY s.final_score DESC, s.end_time DESC, s.id DESC
		`, accountID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		sessions := []GameSession{}
		for rows.Next() {
			s, err := scanSession(rows.Scan)
			if err != nil {
				return nil, err
			}
			sessions = append(sessions, s)
		}
		return sessions, rows.Err()
	})
	if err != nil {
		log.Error().Err(err).Int64("account_id", accountID).Msg("Failed to load account sessions")
		return []GameSession{}
	}
	return sessions
}

// HighScore returns the account's best final score, or 0 when it has none.
func (r *SessionRepository) HighScore(ctx context.Context, accountID int64) int {
	if !r.db.IsConnected() {
		return 0
	}

	score, err := RunWithRetry(ctx, r.db, r.retry, "high_score", func() (int, error) {
		var score int
		err := r.db.queryRow(ctx, "SELECT COALESCE(MAX(final_score), 0) FROM sessions WHERE account_id = ?", accountID).Scan(&score)
		return score, err
	})
	if err != nil {
		log.Error().Err(err).Int64("account_id", accountID).Msg("Failed to load high score")
		return 0
	}
	return score
}

// TotalSessionCount returns the number of stored sessions.
func (r *SessionRepository) TotalSessionCount(ctx context.Context) int {
	if !r.db.IsConnected() {
		return 0
	}

	count, err := RunWithRetry(ctx, r.db, r.retry, "count_sessions", func() (int, error) {
		var count int
		err := r.db.queryRow(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count)
		return count, err
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to count sessions")
		return 0
	}
	return count
}
