package web

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/quizvault/quizvault/internal/config"
	"github.com/quizvault/quizvault/internal/web/handlers"
	"github.com/quizvault/quizvault/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	addr       string
	allowedNet *net.IPNet
	timeouts   config.TimeoutConfig
	router     *chi.Mux
	handlers   *handlers.Handlers
}

// NewServer creates a new web server
func NewServer(addr string, allowedNet *net.IPNet, timeouts config.TimeoutConfig, h *handlers.Handlers) *Server {
	s := &Server{
		addr:       addr,
		allowedNet: allowedNet,
		timeouts:   timeouts,
		router:     chi.NewRouter(),
		handlers:   h,
	}
	s.setupRoutes()
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	r := s.router
	h := s.handlers

	r.Use(chimiddleware.RequestID)
	// AllowSubnet must come BEFORE RealIP so we check the actual connection source
	r.Use(middleware.AllowSubnet(s.allowedNet))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)
	if s.timeouts.Request > 0 {
		r.Use(chimiddleware.Timeout(s.timeouts.Request))
	}

	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard", h.Leaderboard)
		r.Get("/accounts/{username}/sessions", h.AccountSessions)
		r.Get("/stats", h.Stats)
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:        s.addr,
		Handler:     s.router,
		ReadTimeout: s.timeouts.Read,
		IdleTimeout: s.timeouts.Idle,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")
		grace := s.timeouts.Shutdown
		if grace <= 0 {
			grace = config.DefaultTimeoutConfig().Shutdown
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
