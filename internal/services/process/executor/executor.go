// Package executor provides domain.Executor implementations
package executor

import (
	"context"

	"reddcrawl/internal/services/process/domain"

	"golang.org/x/sync/errgroup"
)

// Pool runs up to Workers tasks at once; <=0 -> 1
type Pool struct {
	Workers int
}

var (
	_ domain.Executor = Pool{}
	_ domain.Executor = Serial{}
)

// Run implements domain.Executor. The first failing task cancels the context handed to the others
func (p Pool) Run(ctx context.Context, tasks int, fn func(ctx context.Context, task int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Workers, 1))
	for i := range tasks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error { return fn(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Serial runs tasks one after another in index order
type Serial struct{}

// Run implements domain.Executor
func (Serial) Run(ctx context.Context, tasks int, fn func(ctx context.Context, task int) error) error {
	for i := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// New returns Serial for one worker and a Pool otherwise
func New(workers int) domain.Executor {
	if workers <= 1 {
		return Serial{}
	}
	return Pool{Workers: workers}
}
