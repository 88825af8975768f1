package repo

import (
	"context"
	"sort"

	"reddcrawl/internal/core/leaderboard"
	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/store"
	"reddcrawl/internal/services/process/domain"

	"github.com/google/uuid"
)

const (
	tableLeaderboards = "leaderboard_entries"
	tableStageCounts  = "stage_rejections"

	// insertChunk bounds one ClickHouse batch
	insertChunk = 50_000
)

// CH writes rankings and stage counts to ClickHouse
type CH struct {
	db store.Clickhouse
}

// NewCH returns a domain.LeaderboardRepo over db
func NewCH(db store.Clickhouse) *CH { return &CH{db: db} }

var _ domain.LeaderboardRepo = (*CH)(nil)

// InsertLeaderboards writes every entry with its 1-based rank
func (r *CH) InsertLeaderboards(
	ctx context.Context,
	runID uuid.UUID,
	rankings map[leaderboard.Kind][]leaderboard.Entry,
) error {
	rows := make([][]any, 0, insertChunk)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if err := r.db.Insert(ctx, tableLeaderboards, rows); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeDB, "process: insert %s", tableLeaderboards)
		}
		rows = make([][]any, 0, insertChunk)
		return nil
	}

	for _, kind := range leaderboard.Kinds() {
		for i, e := range rankings[kind] {
			rows = append(rows, []any{runID, string(kind), uint32(i + 1), e.Key, e.Total})
			if len(rows) == insertChunk {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	return flush()
}

// InsertStageCounts writes one row per stage, sorted by name
func (r *CH) InsertStageCounts(ctx context.Context, runID uuid.UUID, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Strings(names)
	rows := make([][]any, 0, len(names))
	for _, n := range names {
		rows = append(rows, []any{runID, n, counts[n]})
	}
	if err := r.db.Insert(ctx, tableStageCounts, rows); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "process: insert %s", tableStageCounts)
	}
	return nil
}
