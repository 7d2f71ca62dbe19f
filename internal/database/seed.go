package database

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quizvault/quizvault/internal/auth"
)

//go:embed seed/default.json
var defaultSeedJSON []byte

// SeedSource is applied once, inside a transaction, when the store is empty.
type SeedSource interface {
	Name() string
	Apply(ctx context.Context, tx *sql.Tx, now time.Time) error
}

// SQLSeed is an ordered list of literal statements, typically read from a
// backup produced by ExportSeed.
type SQLSeed struct {
	Label      string
	Statements []string
}

// ParseSQLSeed splits script into statements. Lines starting with -- are skipped.
func ParseSQLSeed(label, script string) *SQLSeed {
	return &SQLSeed{Label: label, Statements: splitSQLStatements(script)}
}

// LoadSQLSeed reads a seed script from path.
func LoadSQLSeed(path string) (*SQLSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSQLSeed(filepath.Base(path), string(data)), nil
}

func (s *SQLSeed) Name() string {
	if s.Label == "" {
		return "sql"
	}
	return s.Label
}

func (s *SQLSeed) Apply(ctx context.Context, tx *sql.Tx, _ time.Time) error {
	for i, stmt := range s.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("seed statement %d failed: %w", i+1, err)
		}
	}
	return nil
}

// SeedAccount describes an account to create. Either Password or the
// Provider/ExternalID pair must be set.
type SeedAccount struct {
	Username   string `json:"username"`
	Password   string `json:"password,omitempty"`
	Email      string `json:"email,omitempty"`
	Provider   string `json:"provider,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

// SeedSession describes a session owned by a seeded account.
type SeedSession struct {
	Username          string    `json:"username"`
	StartedAt         time.Time `json:"started_at"`
	EndedAt           time.Time `json:"ended_at"`
	FinalScore        int       `json:"final_score"`
	QuestionsAnswered int       `json:"questions_answered"`
}

// DataSeed is a structured seed. Passwords are hashed when applied so no
// plaintext credential is ever written.
type DataSeed struct {
	Label    string        `json:"-"`
	Accounts []SeedAccount `json:"accounts"`
	Sessions []SeedSession `json:"sessions"`

	hasher *auth.Hasher
}

// LoadDataSeed decodes a JSON seed description.
func LoadDataSeed(label string, r io.Reader) (*DataSeed, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	seed := &DataSeed{Label: label}
	if err := dec.Decode(seed); err != nil {
		return nil, fmt.Errorf("failed to decode seed %s: %w", label, err)
	}
	return seed, nil
}

// DefaultSeed returns the embedded demo seed.
func DefaultSeed() (*DataSeed, error) {
	return LoadDataSeed("default", bytes.NewReader(defaultSeedJSON))
}

// LoadSeedFile loads a .json file as a DataSeed and anything else as a SQLSeed.
func LoadSeedFile(path string) (SeedSource, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open seed file: %w", err)
		}
		defer f.Close()
		return LoadDataSeed(filepath.Base(path), f)
	}
	return LoadSQLSeed(path)
}

// WithHasher sets the hasher used for seeded passwords.
func (s *DataSeed) WithHasher(h *auth.Hasher) *DataSeed {
	s.hasher = h
	return s
}

func (s *DataSeed) Name() string {
	if s.Label == "" {
		return "data"
	}
	return s.Label
}

func (s *DataSeed) Apply(ctx context.Context, tx *sql.Tx, now time.Time) error {
	hasher := s.hasher
	if hasher == nil {
		hasher = auth.DefaultHasher()
	}

	ids := make(map[string]int64, len(s.Accounts))
	for _, a := range s.Accounts {
		if err := auth.ValidateUsername(a.Username); err != nil {
			return fmt.Errorf("seed account %q: %w", a.Username, err)
		}

		var id int64
		switch {
		case a.Password != "":
			hash, err := hasher.HashPassword(a.Password)
			if err != nil {
				return fmt.Errorf("seed account %q: %w", a.Username, err)
			}
			id, err = insertPasswordAccount(ctx, tx, a.Username, hash, a.Email, now)
			if err != nil {
				return fmt.Errorf("seed account %q: %w", a.Username, err)
			}
		case a.Provider != "" && a.ExternalID != "":
			result, err := tx.ExecContext(ctx, `
				INSERT INTO accounts (username, email, provider, external_id, created_at)
				VALUES (?, ?, ?, ?, ?)
			`, a.Username, stringToNull(a.Email), a.Provider, a.ExternalID, toMillis(now))
			if err != nil {
				return fmt.Errorf("seed account %q: %w", a.Username, err)
			}
			if id, err = result.LastInsertId(); err != nil {
				return fmt.Errorf("seed account %q: %w", a.Username, err)
			}
		default:
			return fmt.Errorf("seed account %q: %w: password or external identity required", a.Username, ErrInvalidAccount)
		}
		ids[a.Username] = id
	}

	for i, ss := range s.Sessions {
		accountID, ok := ids[ss.Username]
		if !ok {
			return fmt.Errorf("seed session %d: %w: %s", i+1, ErrAccountNotFound, ss.Username)
		}
		session := &GameSession{
			AccountID:         accountID,
			StartedAt:         ss.StartedAt,
			EndedAt:           ss.EndedAt,
			FinalScore:        ss.FinalScore,
			QuestionsAnswered: ss.QuestionsAnswered,
		}
		if err := session.validate(); err != nil {
			return fmt.Errorf("seed session %d: %w", i+1, err)
		}
		if _, err := insertSession(ctx, tx, session); err != nil {
			return fmt.Errorf("seed session %d: %w", i+1, err)
		}
	}
	return nil
}
