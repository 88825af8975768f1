package domain

import (
	"context"
	"io"

	"reddcrawl/internal/adapters/datasets"
	"reddcrawl/internal/core/leaderboard"
	"reddcrawl/internal/core/story"

	"github.com/google/uuid"
)

// RunnerPort is the public port of the process module
type RunnerPort interface {
	Run(ctx context.Context, inputs []InputRef, sink datasets.Sink) (Summary, error)
}

// Executor runs tasks 0..tasks-1, possibly in parallel. It returns the first task error
// and stops starting new tasks once ctx is done or a task failed
type Executor interface {
	Run(ctx context.Context, tasks int, fn func(ctx context.Context, task int) error) error
}

// LedgerRepo records runs and inputs in Postgres
type LedgerRepo interface {
	// StartRun inserts the run row with status running
	StartRun(ctx context.Context, runID uuid.UUID, policy []byte) error

	// FinishRun stamps the final status and counters
	FinishRun(ctx context.Context, runID uuid.UUID, fin RunFinish) error

	// StartInput marks an input of the run as running (idempotent across retries)
	StartInput(ctx context.Context, runID uuid.UUID, input string) error

	// FinishInput stamps the outcome of one input
	FinishInput(ctx context.Context, runID uuid.UUID, input string, fin InputFinish) error
}

// LeaderboardRepo stores rankings and stage counts in ClickHouse
type LeaderboardRepo interface {
	InsertLeaderboards(ctx context.Context, runID uuid.UUID, rankings map[leaderboard.Kind][]leaderboard.Entry) error
	InsertStageCounts(ctx context.Context, runID uuid.UUID, counts map[string]int64) error
}

// Fetcher opens an input archive
type Fetcher interface {
	Fetch(ctx context.Context, ref InputRef) (io.ReadCloser, error)
}

// ReaderPort yields decoded stories from one archive
type ReaderPort interface {
	Next() (story.Story, error)
	Close() error
	Stats() ReaderStats
}

// ReaderFactory builds a ReaderPort over an opened archive
type ReaderFactory interface {
	New(io.ReadCloser) (ReaderPort, error)
}
