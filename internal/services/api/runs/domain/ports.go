package domain

import (
	"context"

	"github.com/google/uuid"
)

// ServicePort is consumed by handlers and other modules
type ServicePort interface {
	ListRuns(ctx context.Context, in ListRunsInput) ([]Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (RunDetail, error)
	Leaderboard(ctx context.Context, id uuid.UUID, kind string, in LeaderboardInput) (Leaderboard, error)
}
