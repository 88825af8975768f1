// Package repo provides the Postgres run ledger and the ClickHouse leaderboard store
package repo

import (
	"context"
	"encoding/json"
	"errors"

	"reddcrawl/internal/modkit/repokit"
	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/store"
	str "reddcrawl/internal/platform/strings"
	"reddcrawl/internal/services/process/domain"

	"github.com/google/uuid"
)

type (
	// PG is a Postgres binder for domain.LedgerRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.LedgerRepo
func NewPG() repokit.Binder[domain.LedgerRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.LedgerRepo { return &queries{q: repokit.RequireQueryer(q)} }

// StartRun inserts the run row
func (r *queries) StartRun(ctx context.Context, runID uuid.UUID, policy []byte) error {
	if len(policy) == 0 {
		policy = []byte("{}")
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO process_runs (run_id, started_at, status, policy)
		VALUES ($1, now(), 'running', $2::jsonb)
	`, runID, string(policy))
	return perr.FromPostgresWithField(err, "process: start run")
}

// FinishRun stamps the final status and counters
func (r *queries) FinishRun(ctx context.Context, runID uuid.UUID, fin domain.RunFinish) error {
	counters, err := json.Marshal(fin.Counters)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "process: encode counters")
	}
	err = store.ExecOne(ctx, r.q, `
		UPDATE process_runs SET
			finished_at = now(),
			status = $2,
			counters = $3::jsonb,
			error = $4
		WHERE run_id = $1
	`, runID, fin.Status, string(counters), str.NullIfBlank(fin.ErrText))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, perr.ErrNotFound):
		return perr.NotFoundf("process: run %s not found", runID)
	case perr.IsCode(err, perr.ErrorCodeDB):
		return err
	}
	return perr.FromPostgresWithField(err, "process: finish run")
}

// StartInput marks an input as running (idempotent across retries)
func (r *queries) StartInput(ctx context.Context, runID uuid.UUID, input string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO process_inputs (run_id, input, started_at, status)
		VALUES ($1, $2, now(), 'running')
		ON CONFLICT (run_id, input) DO UPDATE
		SET started_at = now(), status = 'running', error = null, finished_at = null
	`, runID, input)
	return perr.FromPostgresWithField(err, "process: start input")
}

// FinishInput stamps the outcome of one input
func (r *queries) FinishInput(ctx context.Context, runID uuid.UUID, input string, fin domain.InputFinish) error {
	_, err := r.q.Exec(ctx, `
		UPDATE process_inputs SET
			finished_at = now(),
			status = $3,
			cache_hit = $4,
			records = $5,
			malformed = $6,
			bytes_uncompressed = $7,
			fetch_ms = $8,
			read_ms = $9,
			elapsed_ms = $10,
			error = $11
		WHERE run_id = $1 AND input = $2
	`,
		runID, input, fin.Status, fin.CacheHit, fin.Records, fin.Malformed,
		fin.BytesUncompressed, fin.FetchMS, fin.ReadMS, fin.ElapsedMS, str.NullIfBlank(fin.ErrText),
	)
	return perr.FromPostgresWithField(err, "process: finish input")
}
