// Package service contains the runs read workflows
package service

import (
	"context"
	"fmt"
	"time"

	"reddcrawl/internal/core/leaderboard"
	"reddcrawl/internal/modkit/repokit"
	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/services/api/runs/domain"
	"reddcrawl/internal/services/api/runs/repo"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

const (
	defaultListLimit  = 50
	defaultBoardLimit = 100
)

// Service defines the runs service contract
type Service interface {
	domain.ServicePort
}

// Svc implements the runs service
type Svc struct {
	Runs   repo.Runs
	Boards repo.Boards // nil when ClickHouse is not configured

	// cache holds leaderboards of finished runs, which never change
	cache *gocache.Cache
}

// New constructs a runs service. ttl <= 0 disables the leaderboard cache
func New(db repokit.TxRunner, binder repokit.Binder[repo.Runs], boards repo.Boards, ttl time.Duration) *Svc {
	if db == nil {
		panic("runs.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("runs.Service requires a non nil Runs binder")
	}
	s := &Svc{Runs: binder.Bind(db), Boards: boards}
	if ttl > 0 {
		s.cache = gocache.New(ttl, 2*ttl)
	}
	return s
}

// ListRuns returns runs newest first
func (s *Svc) ListRuns(ctx context.Context, in domain.ListRunsInput) ([]domain.Run, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	out, err := s.Runs.ListRuns(ctx, in.Status, limit, in.Offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Run{}
	}
	return out, nil
}

// GetRun returns a run with its inputs
func (s *Svc) GetRun(ctx context.Context, id uuid.UUID) (domain.RunDetail, error) {
	run, err := s.Runs.GetRun(ctx, id)
	if err != nil {
		return domain.RunDetail{}, err
	}
	inputs, err := s.Runs.ListInputs(ctx, id)
	if err != nil {
		return domain.RunDetail{}, err
	}
	if inputs == nil {
		inputs = []domain.Input{}
	}
	return domain.RunDetail{Run: run, Inputs: inputs}, nil
}

// Leaderboard returns the top entries of one ranking. Rankings of finished runs are cached
func (s *Svc) Leaderboard(
	ctx context.Context,
	id uuid.UUID,
	kind string,
	in domain.LeaderboardInput,
) (domain.Leaderboard, error) {
	k, err := leaderboard.ParseKind(kind)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if s.Boards == nil {
		return domain.Leaderboard{}, perr.Unavailablef("runs: leaderboards store not configured")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultBoardLimit
	}

	key := fmt.Sprintf("%s|%s|%d", id, k, limit)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.(domain.Leaderboard), nil
		}
	}

	run, err := s.Runs.GetRun(ctx, id)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	entries, err := s.Boards.TopEntries(ctx, id, string(k), limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	out := domain.Leaderboard{RunID: id, Kind: string(k), Entries: entries}
	if s.cache != nil && run.Finished() {
		s.cache.SetDefault(key, out)
	}
	return out, nil
}
