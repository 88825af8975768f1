package pg

import (
	"context"
	"errors"
	"testing"

	"reddcrawl/internal/platform/testkit"

	"github.com/jackc/pgx/v5/pgxpool"
)

func TestOpen_BadURL(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{URL: "://bad"}, nil, nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestOpen_PoolError(t *testing.T) {
	testkit.Serial(t)
	testkit.Swap(t, &newPool, func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) {
		return nil, errors.New("refused")
	})

	_, err := Open(context.Background(), Config{URL: "postgres://u:p@db:5432/ledger"}, nil, nil)
	if err == nil || err.Error() != "refused" {
		t.Fatalf("err = %v", err)
	}
}

func TestOpen_AppliesConfig(t *testing.T) {
	testkit.Serial(t)
	var seen *pgxpool.Config
	testkit.Swap(t, &newPool, func(_ context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = pc
		return &pgxpool.Pool{}, nil
	})

	var mutated bool
	p, err := Open(context.Background(),
		Config{URL: "postgres://u:p@db:5432/ledger", MaxConns: 9, SlowMs: 250},
		nil,
		func(pc *pgxpool.Config) { mutated = pc.MaxConns == 9 },
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !mutated || seen == nil || seen.MaxConns != 9 {
		t.Fatalf("pool config not applied before mutate")
	}
	if p.SlowMs != 250 || p.Pool == nil {
		t.Fatalf("PG = %+v", p)
	}
}

func TestClose_NilSafe(t *testing.T) {
	t.Parallel()

	var p *PG
	p.Close()
	(&PG{}).Close()
}
