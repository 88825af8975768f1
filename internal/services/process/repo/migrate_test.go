package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/store"
)

type execRecorder struct {
	store.RowQuerier
	stmts []string
	fail  error
}

func (e *execRecorder) Exec(_ context.Context, sql string, _ ...any) (store.CommandTag, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	e.stmts = append(e.stmts, sql)
	return nil, nil
}

type chRecorder struct {
	store.Clickhouse
	stmts []string
}

func (c *chRecorder) Exec(_ context.Context, sql string, _ ...any) error {
	c.stmts = append(c.stmts, sql)
	return nil
}

func TestMigrate_AppliesEachStatement(t *testing.T) {
	t.Parallel()

	pg, ch := &execRecorder{}, &chRecorder{}
	if err := Migrate(context.Background(), pg, ch); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(pg.stmts) != 4 {
		t.Fatalf("pg statements = %d, want 4", len(pg.stmts))
	}
	if !strings.HasPrefix(pg.stmts[0], "CREATE TABLE IF NOT EXISTS process_runs") {
		t.Fatalf("first pg stmt = %q", pg.stmts[0])
	}
	if len(ch.stmts) != 2 || !strings.Contains(ch.stmts[1], "stage_rejections") {
		t.Fatalf("ch statements = %v", ch.stmts)
	}
}

func TestMigrate_NoStoresIsNoop(t *testing.T) {
	t.Parallel()

	if err := Migrate(context.Background(), nil, nil); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
}

func TestMigrate_PostgresError(t *testing.T) {
	t.Parallel()

	err := Migrate(context.Background(), &execRecorder{fail: errors.New("boom")}, nil)
	if err == nil || perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("err = %v", err)
	}
}
