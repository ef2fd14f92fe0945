package server

import (
	"crypto/subtle"
	"net/http"
	"time"
)

// authMiddleware enforces the X-API-Token header when a token is
// configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			got := r.Header.Get("X-API-Token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.authToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing API token", "AuthError", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// logMiddleware records one line per request with method, path, status and
// duration.
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"elapsed", time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
