package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger logs one line per API request. Server errors log at warn level so a
// degraded store shows up without debug logging; everything else is debug.
// The matched route pattern is logged rather than the raw path, plus the
// player the request is about when the route names one.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			level := zerolog.DebugLevel
			if status >= http.StatusInternalServerError {
				level = zerolog.WarnLevel
			}

			event := log.WithLevel(level).
				Str("method", r.Method).
				Str("route", routePattern(r)).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Str("request_id", middleware.GetReqID(r.Context()))
			if username := chi.URLParam(r, "username"); username != "" {
				event = event.Str("username", username)
			}
			event.Msg("API request")
		}()

		next.ServeHTTP(ww, r)
	})
}

// routePattern returns the chi pattern the request matched, falling back to
// the raw path for unrouted requests. Only valid after the router has run.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// AllowSubnet restricts access to clients inside allowedNet. A nil network
// allows everyone. Rejections get the API's JSON error body.
func AllowSubnet(allowedNet *net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if allowedNet == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if clientAllowed(allowedNet, r.RemoteAddr) {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn().
				Str("remote_addr", r.RemoteAddr).
				Str("allowed_network", allowedNet.String()).
				Str("path", r.URL.Path).
				Msg("Rejected API request from outside allowed network")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}` + "\n"))
		})
	}
}

func clientAllowed(allowedNet *net.IPNet, remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && allowedNet.Contains(ip)
}
