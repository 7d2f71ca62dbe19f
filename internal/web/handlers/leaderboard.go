package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quizvault/quizvault/internal/database"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// LeaderboardResponse is the body of GET /api/leaderboard.
type LeaderboardResponse struct {
	Entries []database.LeaderboardEntry `json:"entries"`
}

// Leaderboard returns the global top scores. limit defaults to 10 and is
// capped at 100.
func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, MaxLeaderboardLimit)
	}

	h.jsonResponse(w, http.StatusOK, LeaderboardResponse{
		Entries: h.sessions.TopScores(r.Context(), limit),
	})
}

// AccountSessionsResponse is the body of GET /api/accounts/{username}/sessions.
type AccountSessionsResponse struct {
	Username  string                 `json:"username"`
	HighScore int                    `json:"high_score"`
	Sessions  []database.GameSession `json:"sessions"`
}

// AccountSessions returns one player's history, best score first.
func (h *Handlers) AccountSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := chi.URLParam(r, "username")

	if !h.health.IsConnected() {
		h.jsonError(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	account := h.accounts.FindByUsername(ctx, username)
	if account == nil {
		h.jsonError(w, "account not found", http.StatusNotFound)
		return
	}

	h.jsonResponse(w, http.StatusOK, AccountSessionsResponse{
		Username:  account.Username,
		HighScore: h.sessions.HighScore(ctx, account.ID),
		Sessions:  h.sessions.SessionsForAccount(ctx, account.ID),
	})
}
