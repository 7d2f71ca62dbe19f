package handlers

import "net/http"

// Healthz reports store connectivity. A degraded store answers 503 while the
// API keeps serving empty results.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	connected := h.health.IsConnected()
	status := http.StatusOK
	if !connected {
		status = http.StatusServiceUnavailable
	}
	h.jsonResponse(w, status, map[string]bool{"connected": connected})
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Connected bool `json:"connected"`
	Accounts  int  `json:"accounts"`
	Sessions  int  `json:"sessions"`
}

// Stats returns store-wide counts.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.jsonResponse(w, http.StatusOK, StatsResponse{
		Connected: h.health.IsConnected(),
		Accounts:  h.accounts.Count(ctx),
		Sessions:  h.sessions.TotalSessionCount(ctx),
	})
}
