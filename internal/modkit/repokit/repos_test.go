package repokit

import (
	"context"
	"errors"
	"testing"

	"reddcrawl/internal/platform/store"
)

type txCounter struct {
	store.RowQuerier
	calls int
}

func (t *txCounter) Tx(ctx context.Context, fn func(store.RowQuerier) error) error {
	t.calls++
	return fn(t)
}

type named struct{ q Queryer }

func TestWithTx_BindsInsideTransaction(t *testing.T) {
	t.Parallel()

	tx := &txCounter{}
	var got Queryer
	b := BindFunc[named](func(q Queryer) named { return named{q: q} })

	err := WithTx(context.Background(), tx, b, func(r named) error {
		got = r.q
		return nil
	})
	if err != nil || tx.calls != 1 || got != tx {
		t.Fatalf("err=%v calls=%d bound=%v", err, tx.calls, got)
	}

	boom := errors.New("boom")
	if err := WithTx(context.Background(), tx, b, func(named) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRequireQueryer(t *testing.T) {
	t.Parallel()

	tx := &txCounter{}
	if RequireQueryer(tx) != tx {
		t.Fatalf("RequireQueryer changed q")
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("nil q did not panic")
		}
	}()
	RequireQueryer(nil)
}
