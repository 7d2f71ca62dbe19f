package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/quizvault/quizvault/internal/database"
)

// AccountReader is the account lookup surface the handlers need.
type AccountReader interface {
	FindByUsername(ctx context.Context, username string) *database.Account
	Count(ctx context.Context) int
}

// SessionReader is the leaderboard and history surface the handlers need.
type SessionReader interface {
	TopScores(ctx context.Context, limit int) []database.LeaderboardEntry
	SessionsForAccount(ctx context.Context, accountID int64) []database.GameSession
	HighScore(ctx context.Context, accountID int64) int
	TotalSessionCount(ctx context.Context) int
}

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	IsConnected() bool
}

// Handlers contains all HTTP handlers
type Handlers struct {
	accounts AccountReader
	sessions SessionReader
	health   HealthChecker
}

// New creates a new handlers instance
func New(accounts AccountReader, sessions SessionReader, health HealthChecker) *Handlers {
	return &Handlers{
		accounts: accounts,
		sessions: sessions,
		health:   health,
	}
}

func (h *Handlers) jsonResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func (h *Handlers) jsonError(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}
