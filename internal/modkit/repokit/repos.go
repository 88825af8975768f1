// Package repokit binds repositories to whatever query surface the caller holds:
// the pool for reads, a transaction for multi statement writes
package repokit

import (
	"context"

	"reddcrawl/internal/platform/store"
)

type (
	// Queryer is what a bound repo runs its SQL against
	Queryer = store.RowQuerier

	// TxRunner opens transactions and also serves plain reads
	TxRunner = store.TxRunner
)

// Binder produces a repo bound to one Queryer
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a constructor to Binder
type BindFunc[T any] func(Queryer) T

// Bind implements Binder
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// RequireQueryer panics on a nil q; wiring bugs should fail at startup
func RequireQueryer(q Queryer) Queryer {
	if q == nil {
		panic("repokit: nil Queryer")
	}
	return q
}

// WithTx binds repo inside a transaction and hands it to fn
func WithTx[T any](ctx context.Context, tx TxRunner, b Binder[T], fn func(T) error) error {
	return tx.Tx(ctx, func(q store.RowQuerier) error { return fn(b.Bind(q)) })
}
