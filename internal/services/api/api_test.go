package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reddcrawl/internal/modkit/module"
	phttp "reddcrawl/internal/platform/net/http"
	"reddcrawl/internal/platform/store"

	"github.com/go-chi/chi/v5"
)

type pingTx struct {
	store.TxRunner
	err error
}

func (p pingTx) Ping(context.Context) error { return p.err }

func mount(t *testing.T, st *store.Store) *chi.Mux {
	t.Helper()
	t.Cleanup(module.Reset)
	mux := chi.NewRouter()
	Mount(phttp.AdaptChi(mux), Options{Store: st})
	return mux
}

func TestHealthz(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"up", nil, http.StatusOK},
		{"down", errors.New("refused"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := mount(t, &store.Store{PG: pingTx{err: tc.err}})
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestMount_RegistersRunsModule(t *testing.T) {
	_ = mount(t, &store.Store{PG: pingTx{}})
	if _, ok := module.PortsAs[any]("runs"); !ok {
		t.Fatalf("runs ports not registered")
	}
}

func TestMount_LeaderboardsUnavailableWithoutClickHouse(t *testing.T) {
	mux := mount(t, &store.Store{PG: pingTx{}})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/9b3e1a52-8f7e-4b8e-9a57-2d0f3c1d4e5f/leaderboards/authors", nil)
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}
