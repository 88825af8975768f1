package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"reddcrawl/internal/platform/net/middleware"
)

const (
	requestTimeout = 30 * time.Second
	slowRequest    = 500 * time.Millisecond
)

// Stack is the middleware chain in front of every versioned route. CORS is
// limited to origins unless empty
func Stack(origins []string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.AccessLog(slowRequest),
		middleware.RecoverJSON,
		middleware.CORS(middleware.CORSOptions{AllowedOrigins: origins}),
		middleware.NoCache(),
		middleware.Compress(flate.BestSpeed, "application/json"),
		middleware.StripSlashes(),
		middleware.Timeout(requestTimeout),
	}
}
