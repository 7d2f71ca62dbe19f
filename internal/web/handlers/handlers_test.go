package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizvault/quizvault/internal/database"
)

type fakeStore struct {
	connected bool
	accounts  map[string]*database.Account
	sessions  map[int64][]database.GameSession
	top       []database.LeaderboardEntry
	lastLimit int
}

func (f *fakeStore) IsConnected() bool { return f.connected }

func (f *fakeStore) FindByUsername(_ context.Context, username string) *database.Account {
	return f.accounts[username]
}

func (f *fakeStore) Count(context.Context) int { return len(f.accounts) }

func (f *fakeStore) TopScores(_ context.Context, limit int) []database.LeaderboardEntry {
	f.lastLimit = limit
	if len(f.top) > limit {
		return f.top[:limit]
	}
	return f.top
}

func (f *fakeStore) SessionsForAccount(_ context.Context, accountID int64) []database.GameSession {
	if s, ok := f.sessions[accountID]; ok {
		return s
	}
	return []database.GameSession{}
}

func (f *fakeStore) HighScore(_ context.Context, accountID int64) int {
	best := 0
	for _, s := range f.sessions[accountID] {
		best = max(best, s.FinalScore)
	}
	return best
}

func (f *fakeStore) TotalSessionCount(context.Context) int {
	n := 0
	for _, s := range f.sessions {
		n += len(s)
	}
	return n
}

func newFixture() (*fakeStore, http.Handler) {
	end := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{
		connected: true,
		accounts: map[string]*database.Account{
			"alice": {ID: 1, Username: "alice", PasswordHash: "$2a$secret"},
		},
		sessions: map[int64][]database.GameSession{
			1: {
				{ID: 2, AccountID: 1, StartedAt: end.Add(-time.Minute), EndedAt: end, FinalScore: 30},
				{ID: 1, AccountID: 1, StartedAt: end.Add(-time.Hour), EndedAt: end, FinalScore: 10},
			},
		},
		top: []database.LeaderboardEntry{
			{GameSession: database.GameSession{ID: 2, AccountID: 1, FinalScore: 30}, Username: "alice"},
		},
	}

	h := New(store, store, store)
	r := chi.NewRouter()
	r.Get("/healthz", h.Healthz)
	r.Get("/api/leaderboard", h.Leaderboard)
	r.Get("/api/accounts/{username}/sessions", h.AccountSessions)
	r.Get("/api/stats", h.Stats)
	return store, r
}

func serve(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	store, handler := newFixture()

	rec := serve(t, handler, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"connected":true}`, rec.Body.String())

	store.connected = false
	rec = serve(t, handler, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"connected":false}`, rec.Body.String())
}

func TestLeaderboard_Limit(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
	}{
		{name: "default", query: "", wantCode: http.StatusOK, wantLimit: DefaultLeaderboardLimit},
		{name: "explicit", query: "?limit=5", wantCode: http.StatusOK, wantLimit: 5},
		{name: "capped", query: "?limit=1000", wantCode: http.StatusOK, wantLimit: MaxLeaderboardLimit},
		{name: "zero", query: "?limit=0", wantCode: http.StatusBadRequest},
		{name: "garbage", query: "?limit=ten", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, handler := newFixture()
			rec := serve(t, handler, "/api/leaderboard"+tt.query)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantLimit, store.lastLimit)
			}
		})
	}
}

func TestLeaderboard_Body(t *testing.T) {
	_, handler := newFixture()

	rec := serve(t, handler, "/api/leaderboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body LeaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "alice", body.Entries[0].Username)
	assert.Equal(t, 30, body.Entries[0].FinalScore)
}

func TestAccountSessions(t *testing.T) {
	_, handler := newFixture()

	rec := serve(t, handler, "/api/accounts/alice/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "$2a$secret")

	var body AccountSessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body.Username)
	assert.Equal(t, 30, body.HighScore)
	require.Len(t, body.Sessions, 2)
	assert.Equal(t, 30, body.Sessions[0].FinalScore)
}

func TestAccountSessions_UnknownAccount(t *testing.T) {
	_, handler := newFixture()

	rec := serve(t, handler, "/api/accounts/bob/sessions")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"account not found"}`, rec.Body.String())
}

func TestAccountSessions_Degraded(t *testing.T) {
	store, handler := newFixture()
	store.connected = false

	rec := serve(t, handler, "/api/accounts/alice/sessions")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	_, handler := newFixture()

	rec := serve(t, handler, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"connected":true,"accounts":1,"sessions":2}`, rec.Body.String())
}
