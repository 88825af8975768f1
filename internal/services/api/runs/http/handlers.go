// Package http provides http transport for runs
package http

import (
	stdhttp "net/http"

	"reddcrawl/internal/modkit/httpkit"
	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/net/http/bind"
	"reddcrawl/internal/services/api/runs/domain"

	"github.com/google/uuid"
)

// Register mounts runs endpoints on the given router
func Register(r httpkit.Router, s domain.ServicePort) {
	h := &handlers{svc: s}

	httpkit.Get(r, "/", h.list)
	httpkit.Get(r, "/{id}", h.get)
	httpkit.Get(r, "/{id}/leaderboards/{kind}", h.leaderboard)
}

type handlers struct{ svc domain.ServicePort }

// list returns runs newest first, optionally filtered by status
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	in, err := bind.Query[domain.ListRunsInput](r)
	if err != nil {
		return nil, err
	}
	return h.svc.ListRuns(r.Context(), in)
}

func (h *handlers) get(r *stdhttp.Request) (any, error) {
	id, err := runID(r)
	if err != nil {
		return nil, err
	}
	return h.svc.GetRun(r.Context(), id)
}

// leaderboard returns the top entries of one ranking
func (h *handlers) leaderboard(r *stdhttp.Request) (any, error) {
	id, err := runID(r)
	if err != nil {
		return nil, err
	}
	in, err := bind.Query[domain.LeaderboardInput](r)
	if err != nil {
		return nil, err
	}
	return h.svc.Leaderboard(r.Context(), id, httpkit.Param(r, "kind"), in)
}

func runID(r *stdhttp.Request) (uuid.UUID, error) {
	raw := httpkit.Param(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, perr.WithField(perr.InvalidArgf("invalid run id %q", raw), "id")
	}
	return id, nil
}
