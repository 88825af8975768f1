//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"reddcrawl/internal/modkit/repokit"
	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/store"
	"reddcrawl/internal/services/process/domain"

	"github.com/google/uuid"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) store.TxRunner {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "postgres",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections"),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, _ := c.Host(ctx)
	mp, _ := c.MappedPort(ctx, "5432/tcp")
	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mp.Port())

	st, err := store.Open(ctx, store.Config{PG: store.PGConfig{Enabled: true, URL: dsn, MaxConns: 4}})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	if err := Migrate(ctx, st.PG, nil); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	// applying twice must be a no-op
	if err := Migrate(ctx, st.PG, nil); err != nil {
		t.Fatalf("reapply schema: %v", err)
	}
	return st.PG
}

func TestPG_Integration_RunLifecycle(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()
	runID := uuid.New()
	binder := NewPG()

	err := repokit.WithTx(ctx, db, binder, func(r domain.LedgerRepo) error {
		if err := r.StartRun(ctx, runID, []byte(`{"test_size":0.0005}`)); err != nil {
			return err
		}
		if err := r.StartInput(ctx, runID, "a.gz"); err != nil {
			return err
		}
		// retries restart the same input row
		return r.StartInput(ctx, runID, "a.gz")
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	err = repokit.WithTx(ctx, db, binder, func(r domain.LedgerRepo) error {
		if err := r.FinishInput(ctx, runID, "a.gz", domain.InputFinish{
			Status: domain.StatusOK, Records: 10, Malformed: 2, BytesUncompressed: 4096, CacheHit: true,
		}); err != nil {
			return err
		}
		return r.FinishRun(ctx, runID, domain.RunFinish{
			Status:   domain.StatusOK,
			Counters: domain.Counters{Inputs: 1, Records: 10, Valid: 8},
		})
	})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	var status string
	var valid int64
	if err := db.QueryRow(ctx,
		`SELECT status, (counters->>'valid')::bigint FROM process_runs WHERE run_id = $1`, runID,
	).Scan(&status, &valid); err != nil {
		t.Fatalf("select run: %v", err)
	}
	if status != "ok" || valid != 8 {
		t.Fatalf("run = %s valid=%d", status, valid)
	}

	var records, malformed int
	var hit bool
	if err := db.QueryRow(ctx,
		`SELECT records, malformed, cache_hit FROM process_inputs WHERE run_id = $1 AND input = 'a.gz'`, runID,
	).Scan(&records, &malformed, &hit); err != nil {
		t.Fatalf("select input: %v", err)
	}
	if records != 10 || malformed != 2 || !hit {
		t.Fatalf("input = %d %d %v", records, malformed, hit)
	}
}

func TestPG_Integration_FinishUnknownRun(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	err := repokit.WithTx(ctx, db, NewPG(), func(r domain.LedgerRepo) error {
		return r.FinishRun(ctx, uuid.New(), domain.RunFinish{Status: domain.StatusError, ErrText: "x"})
	})
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
