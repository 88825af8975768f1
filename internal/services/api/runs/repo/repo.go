// Package repo reads the run ledger from Postgres and rankings from ClickHouse
package repo

import (
	"context"
	"encoding/json"
	"time"

	"reddcrawl/internal/modkit/repokit"
	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/store"
	"reddcrawl/internal/services/api/runs/domain"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Runs is the ledger read surface
type Runs interface {
	ListRuns(ctx context.Context, status string, limit, offset int) ([]domain.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (domain.Run, error)
	ListInputs(ctx context.Context, id uuid.UUID) ([]domain.Input, error)
}

// Boards is the rankings read surface
type Boards interface {
	TopEntries(ctx context.Context, id uuid.UUID, kind string, limit int) ([]domain.Entry, error)
}

type (
	// PG is a binder that can bind the repo to a Queryer or TxRunner
	PG struct{}
	// queries implements Runs
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for Runs
func NewPG() repokit.Binder[Runs] { return PG{} }

// Bind wires a Queryer to the repo
func (PG) Bind(q repokit.Queryer) Runs { return &queries{q: repokit.RequireQueryer(q)} }

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var runColumns = []string{
	"run_id", "started_at", "finished_at", "status",
	"policy::text", "counters::text", "coalesce(error, '')",
}

// ListRunsSQL builds the run list query, newest first
func ListRunsSQL(status string, limit, offset int) (string, []any, error) {
	b := psql.Select(runColumns...).
		From("process_runs").
		OrderBy("started_at DESC", "run_id").
		Limit(uint64(limit)).
		Offset(uint64(max(offset, 0)))
	if status != "" {
		b = b.Where(sq.Eq{"status": status})
	}
	return b.ToSql()
}

func (r *queries) ListRuns(ctx context.Context, status string, limit, offset int) ([]domain.Run, error) {
	sql, args, err := ListRunsSQL(status, limit, offset)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "runs: build list query")
	}
	out, err := store.Many(ctx, r.q, scanRun, sql, args...)
	if err != nil {
		return nil, perr.FromPostgresWithField(err, "runs: list")
	}
	return out, nil
}

func (r *queries) GetRun(ctx context.Context, id uuid.UUID) (domain.Run, error) {
	sql, args, err := psql.Select(runColumns...).
		From("process_runs").
		Where(sq.Eq{"run_id": id.String()}).
		ToSql()
	if err != nil {
		return domain.Run{}, perr.Wrap(err, perr.ErrorCodeUnknown, "runs: build get query")
	}
	run, err := store.One(ctx, r.q, scanRun, sql, args...)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return domain.Run{}, perr.NotFoundf("run %s not found", id)
	}
	if err != nil {
		return domain.Run{}, perr.FromPostgresWithField(err, "runs: get")
	}
	return run, nil
}

func (r *queries) ListInputs(ctx context.Context, id uuid.UUID) ([]domain.Input, error) {
	sql, args, err := psql.Select(
		"input", "status", "started_at", "finished_at", "cache_hit",
		"records", "malformed", "bytes_uncompressed",
		"fetch_ms", "read_ms", "elapsed_ms", "coalesce(error, '')",
	).
		From("process_inputs").
		Where(sq.Eq{"run_id": id.String()}).
		OrderBy("input").
		ToSql()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "runs: build inputs query")
	}
	out, err := store.Many(ctx, r.q, func(row store.Row) (domain.Input, error) {
		var in domain.Input
		err := row.Scan(
			&in.Input, &in.Status, &in.StartedAt, &in.FinishedAt, &in.CacheHit,
			&in.Records, &in.Malformed, &in.BytesUncompressed,
			&in.FetchMS, &in.ReadMS, &in.ElapsedMS, &in.Error,
		)
		return in, err
	}, sql, args...)
	if err != nil {
		return nil, perr.FromPostgresWithField(err, "runs: inputs")
	}
	return out, nil
}

func scanRun(row store.Row) (domain.Run, error) {
	var (
		run      domain.Run
		finished *time.Time
		policy   string
		counters string
	)
	if err := row.Scan(&run.ID, &run.StartedAt, &finished, &run.Status, &policy, &counters, &run.Error); err != nil {
		return domain.Run{}, err
	}
	run.FinishedAt = finished
	run.Policy = json.RawMessage(policy)
	run.Counters = json.RawMessage(counters)
	return run, nil
}

// CH reads rankings from ClickHouse
type CH struct {
	db store.Clickhouse
}

// NewCH returns Boards over db
func NewCH(db store.Clickhouse) *CH { return &CH{db: db} }

const topEntriesSQL = `
SELECT rank, key, total
FROM leaderboard_entries
WHERE run_id = ? AND kind = ?
ORDER BY rank
LIMIT ?`

// TopEntries returns the first limit entries of one ranking
func (c *CH) TopEntries(ctx context.Context, id uuid.UUID, kind string, limit int) ([]domain.Entry, error) {
	rows, err := c.db.Query(ctx, topEntriesSQL, id.String(), kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Entry, 0, limit)
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.Rank, &e.Key, &e.Total); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeDB, "runs: scan entry")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
