// Package middleware collects the http middleware the API stacks: chi and
// go-chi/cors adapters plus a zerolog access log and a JSON panic handler
package middleware

import (
	"net/http"
	"time"

	pstrings "reddcrawl/internal/platform/strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
)

// Middleware is the standard net/http middleware shape
type Middleware = func(http.Handler) http.Handler

// RequestID propagates or assigns X-Request-Id
func RequestID() Middleware { return chimw.RequestID }

// RealIP trusts X-Forwarded-For and X-Real-IP
func RealIP() Middleware { return chimw.RealIP }

// NoCache disables client and proxy caching
func NoCache() Middleware { return chimw.NoCache }

// StripSlashes drops a trailing slash before routing
func StripSlashes() Middleware { return chimw.StripSlashes }

// Timeout cancels the request context after d
func Timeout(d time.Duration) Middleware { return chimw.Timeout(d) }

// Compress gzips responses at level for the given content types
func Compress(level int, types ...string) Middleware {
	return chimw.NewCompressor(level, types...).Handler
}

// CORSOptions narrows go-chi/cors to what the API sets
type CORSOptions struct {
	AllowedOrigins []string // any origin when empty
	AllowedHeaders []string
	MaxAge         int
}

// CORS allows GET, HEAD and OPTIONS from o.AllowedOrigins
func CORS(o CORSOptions) Middleware {
	return chicors.Handler(chicors.Options{
		AllowedOrigins: pstrings.Or(o.AllowedOrigins, []string{"*"}),
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: pstrings.Or(o.AllowedHeaders, []string{"Accept", "Content-Type", "X-Request-Id"}),
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         o.MaxAge,
	})
}
