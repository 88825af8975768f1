package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	perr "reddcrawl/internal/platform/errors"
	phttp "reddcrawl/internal/platform/net/http"
)

func TestRecoverJSON(t *testing.T) {
	t.Parallel()

	h := RequestID()(RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.Header.Set("X-Request-Id", "req-9")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", rec.Code)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Code != perr.ErrorCodePanic || env.RequestID != "req-9" {
		t.Fatalf("env = %+v", env)
	}
}

func TestRecoverJSON_AbortHandler(t *testing.T) {
	t.Parallel()

	h := RecoverJSON(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if recover() != http.ErrAbortHandler {
			t.Fatalf("ErrAbortHandler must propagate")
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestAccessLog_PassesThrough(t *testing.T) {
	t.Parallel()

	for _, slow := range []time.Duration{0, time.Nanosecond} {
		h := AccessLog(slow)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("hi"))
			_, _ = w.Write([]byte("there"))
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != http.StatusCreated || rec.Body.String() != "hithere" {
			t.Fatalf("slow=%v code=%d body=%q", slow, rec.Code, rec.Body.String())
		}
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	h := CORS(CORSOptions{AllowedOrigins: []string{"https://dash.example"}})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	)
	for origin, allowed := range map[string]bool{"https://dash.example": true, "https://evil.example": false} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		got := rec.Header().Get("Access-Control-Allow-Origin") == origin
		if got != allowed {
			t.Fatalf("origin %s allowed=%v", origin, got)
		}
	}
}
