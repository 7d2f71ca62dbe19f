package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quizvault/quizvault/internal/auth"
)

var (
	// ErrUsernameTaken is returned when an account with the username exists.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidAccount is returned for malformed account input.
	ErrInvalidAccount = errors.New("invalid account")
	// ErrAccountNotFound is returned when a referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

// Account represents a player identity stored in the database.
// PasswordHash is empty for externally authenticated accounts.
type Account struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Email        string     `json:"email,omitempty"`
	Provider     string     `json:"provider,omitempty"`
	ExternalID   string     `json:"external_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// IsExternal reports whether the account authenticates through an
// external identity provider.
func (a *Account) IsExternal() bool {
	return a.Provider != "" && a.ExternalID != ""
}

const accountColumns = `id, username, password_hash, email, provider, external_id, created_at, last_login`

func scanAccount(scan func(dest ...any) error) (*Account, error) {
	a := &Account{}
	var passwordHash, email, provider, externalID sql.NullString
	var createdAt int64
	var lastLogin sql.NullInt64

	if err := scan(&a.ID, &a.Username, &passwordHash, &email, &provider, &externalID, &createdAt, &lastLogin); err != nil {
		return nil, err
	}

	a.PasswordHash = nullStringValue(passwordHash)
	a.Email = nullStringValue(email)
	a.Provider = nullStringValue(provider)
	a.ExternalID = nullStringValue(externalID)
	a.CreatedAt = fromMillis(createdAt)
	a.LastLoginAt = nullMillisToPtr(lastLogin)
	return a, nil
}

func insertPasswordAccount(ctx context.Context, tx *sql.Tx, username, passwordHash, email string, createdAt time.Time) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (username, password_hash, email, created_at)
		VALUES (?, ?, ?, ?)
	`, username, passwordHash, stringToNull(email), toMillis(createdAt))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// AccountRepository stores and authenticates player accounts.
type AccountRepository struct {
	db     *Manager
	hasher *auth.Hasher
	retry  RetryPolicy
}

// NewAccountRepository creates an account repository. A nil hasher uses
// auth.DefaultHasher.
func NewAccountRepository(db *Manager, hasher *auth.Hasher) *AccountRepository {
	if hasher == nil {
		hasher = auth.DefaultHasher()
	}
	return &AccountRepository{
		db:     db,
		hasher: hasher,
		retry:  DefaultRetryPolicy(),
	}
}

// SetRetryPolicy overrides the policy used by read and best-effort paths.
func (r *AccountRepository) SetRetryPolicy(policy RetryPolicy) {
	r.retry = policy
}

// Create hashes password, inserts the account and sets account.ID,
// account.PasswordHash and account.CreatedAt. Uniqueness of the username is
// enforced by the store; a duplicate yields ErrUsernameTaken and no row.
func (r *AccountRepository) Create(ctx context.Context, account *Account, password string) error {
	if account == nil {
		return fmt.Errorf("%w: account is nil", ErrInvalidAccount)
	}
	if err := auth.ValidateUsername(account.Username); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAccount, err)
	}
	if !r.db.IsConnected() {
		log.Warn().Str("username", account.Username).Msg("Cannot create account: database not connected")
		return ErrNotConnected
	}

	hash, err := r.hasher.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAccount, err)
	}

	now := fromMillis(toMillis(r.db.Now()))
	var id int64
	err = r.db.RunInTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertPasswordAccount(ctx, tx, account.Username, hash, account.Email, now)
		return err
	})
	if err != nil {
		if kind, ok := constraintKind(err); ok && kind == ConstraintUnique {
			log.Debug().Str("username", account.Username).Msg("Account creation rejected: username taken")
			return fmt.Errorf("%w: %w", ErrUsernameTaken, err)
		}
		log.Error().Err(err).Str("username", account.Username).Msg("Failed to create account")
		return fmt.Errorf("failed to create account: %w", err)
	}

	account.ID = id
	account.PasswordHash = hash
	account.Provider = ""
	account.ExternalID = ""
	account.CreatedAt = now
	account.LastLoginAt = nil
	return nil
}

func (r *AccountRepository) findOne(ctx context.Context, operation, where string, arg any) *Account {
	if !r.db.IsConnected() {
		return nil
	}

	account, err := RunWithRetry(ctx, r.db, r.retry, operation, func() (*Account, error) {
		a, err := scanAccount(r.db.queryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE "+where, arg).Scan)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return a, err
	})
	if err != nil {
		log.Error().Err(err).Str("operation", operation).Msg("Failed to load account")
		return nil
	}
	return account
}

// FindByUsername returns the account with the exact username, or nil when
// none exists or the store is unavailable.
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) *Account {
	return r.findOne(ctx, "find_account_by_username", "username = ?", username)
}

// FindByID returns the account with id, or nil.
func (r *AccountRepository) FindByID(ctx context.Context, id int64) *Account {
	return r.findOne(ctx, "find_account_by_id", "id = ?", id)
}

// UsernameExists reports whether an account has exactly this username.
func (r *AccountRepository) UsernameExists(ctx context.Context, username string) bool {
	if !r.db.IsConnected() {
		return false
	}

	exists, err := RunWithRetry(ctx, r.db, r.retry, "username_exists", func() (bool, error) {
		var exists bool
		err := r.db.queryRow(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE username = ?)", username).Scan(&exists)
		return exists, err
	})
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("Failed to check username")
		return false
	}
	return exists
}

// VerifyPassword reports whether password matches the stored credential for
// username. Unknown usernames, empty passwords, accounts without a password
// credential and store failures all yield false.
func (r *AccountRepository) VerifyPassword(ctx context.Context, username, password string) bool {
	if password == "" || !r.db.IsConnected() {
		return false
	}

	hash, err := RunWithRetry(ctx, r.db, r.retry, "verify_password", func() (string, error) {
		var hash sql.NullString
		err := r.db.queryRow(ctx, "SELECT password_hash FROM accounts WHERE username = ?", username).Scan(&hash)
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return nullStringValue(hash), err
	})
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("Failed to load credential")
		return false
	}
	if hash == "" {
		return false
	}
	return r.hasher.CheckPassword(password, hash)
}

// RecordAuthentication sets the account's last-authentication time to now.
// It is best-effort: failures are logged and never reported to the caller.
func (r *AccountRepository) RecordAuthentication(ctx context.Context, accountID int64) {
	if !r.db.IsConnected() {
		log.Warn().Int64("account_id", accountID).Msg("Skipping last login update: database not connected")
		return
	}

	now := toMillis(r.db.Now())
	updated, err := RunWithRetry(ctx, r.db, r.retry, "record_authentication", func() (int64, error) {
		result, err := r.db.exec(ctx, "UPDATE accounts SET last_login = ? WHERE id = ?", now, accountID)
		if err != nil {
			return 0, err
		}
		return result.RowsAffected()
	})
	if err != nil {
		log.Warn().Err(err).Int64("account_id", accountID).Msg("Failed to record authentication")
		return
	}
	if updated == 0 {
		log.Debug().Int64("account_id", accountID).Msg("No account to record authentication for")
	}
}

// UpsertExternalAccount finds or creates the account keyed by
// (provider, externalID). An existing account gets its email refreshed when a
// new one is supplied; a new account is created without a password. The
// unique index on the pair makes concurrent upserts converge on one row.
func (r *AccountRepository) UpsertExternalAccount(ctx context.Context, username, email, provider, externalID string) (*Account, error) {
	provider = strings.TrimSpace(provider)
	externalID = strings.TrimSpace(externalID)
	if provider == "" || externalID == "" {
		return nil, fmt.Errorf("%w: provider and external id are required", ErrInvalidAccount)
	}
	if err := auth.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccount, err)
	}
	if !r.db.IsConnected() {
		log.Warn().Str("provider", provider).Msg("Cannot upsert external account: database not connected")
		return nil, ErrNotConnected
	}

	var account *Account
	err := r.db.RunInTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		account, err = scanAccount(tx.QueryRowContext(ctx, `
			INSERT INTO accounts (username, email, provider, external_id, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(provider, external_id) DO UPDATE SET
				email = COALESCE(excluded.email, accounts.email)
			RETURNING `+accountColumns,
			username, stringToNull(email), provider, externalID, toMillis(r.db.Now()),
		).Scan)
		return err
	})
	if err != nil {
		if kind, ok := constraintKind(err); ok && kind == ConstraintUnique {
			log.Debug().Str("username", username).Str("provider", provider).Msg("External account rejected: username taken")
			return nil, fmt.Errorf("%w: %w", ErrUsernameTaken, err)
		}
		log.Error().Err(err).Str("provider", provider).Msg("Failed to upsert external account")
		return nil, fmt.Errorf("failed to upsert external account: %w", err)
	}
	return account, nil
}

// Count returns the number of accounts, or 0 when the store is unavailable.
func (r *AccountRepository) Count(ctx context.Context) int {
	if !r.db.IsConnected() {
		return 0
	}

	count, err := RunWithRetry(ctx, r.db, r.retry, "count_accounts", func() (int, error) {
		var count int
		err := r.db.queryRow(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)
		return count, err
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to count accounts")
		return 0
	}
	return count
}
