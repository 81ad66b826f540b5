package middleware

import (
	"net/http"
	"strings"
)

// CORS applies cross-origin headers for the dashboard and status pages.
// With no configured origins every origin is allowed, which suits the
// default single-host deployment behind a reverse proxy.
type CORS struct {
	allowed  map[string]struct{}
	allowAll bool
}

// NewCORSMiddleware creates the CORS middleware. Passing no origins
// allows all of them.
func NewCORSMiddleware(allowedOrigins ...string) *CORS {
	c := &CORS{allowed: make(map[string]struct{}, len(allowedOrigins))}
	if len(allowedOrigins) == 0 {
		c.allowAll = true
		return c
	}
	for _, o := range allowedOrigins {
		c.allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return c
}

// Wrap adds CORS headers for allowed origins and short-circuits
// preflight requests. The header set covers exactly what the engine's
// routes accept: JSON bodies, bearer tokens and the cron shared secret.
func (c *CORS) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && c.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Cron-Secret, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (c *CORS) originAllowed(origin string) bool {
	if c.allowAll {
		return true
	}
	_, ok := c.allowed[strings.TrimRight(origin, "/")]
	return ok
}
