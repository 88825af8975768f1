// Package store opens the optional backends, the Postgres run ledger and the
// ClickHouse rankings store, behind small interfaces repos can fake
package store

import (
	"context"
	"errors"

	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/logger"
)

// Row is a single result row
type Row interface {
	Scan(dest ...any) error
}

// Rows is a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag describes the outcome of a write
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the SQL surface repos run against
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner is a RowQuerier that can also open transactions. fn's error rolls back
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse is the columnar surface. Insert rows hold values in column order
type Clickhouse interface {
	Insert(ctx context.Context, table string, rows [][]any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Exec(ctx context.Context, sql string, args ...any) error
	Close() error
}

type pinger interface{ Ping(context.Context) error }

// Store holds whichever backends were enabled; the others stay nil
type Store struct {
	Log logger.Logger
	PG  TxRunner
	CH  Clickhouse
}

// Option adjusts a Store before backends open
type Option func(*Store)

// WithLogger sets the logger handed to backend tracers
func WithLogger(l logger.Logger) Option { return func(s *Store) { s.Log = l } }

// Open connects the backends enabled in cfg. A failure closes what already opened
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{Log: *logger.Named("store")}
	for _, o := range opts {
		o(s)
	}
	if cfg.PG.Enabled {
		pg, err := openPG(ctx, cfg, s.Log)
		if err != nil {
			return nil, err
		}
		s.PG = pg
	}
	if cfg.CH.Enabled {
		ch, err := openCH(ctx, cfg)
		if err != nil {
			return nil, errors.Join(err, s.Close(ctx))
		}
		s.CH = ch
	}
	return s, nil
}

// Guard pings every enabled backend; failures are ErrorCodeUnavailable
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return perr.Unavailablef("store: not opened")
	}
	backends := []struct {
		name string
		b    any
	}{{"pg", s.PG}, {"ch", s.CH}}

	var errs []error
	for _, be := range backends {
		p, ok := be.b.(pinger)
		if !ok {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s", be.name))
		}
	}
	return errors.Join(errs...)
}

// Close releases every enabled backend
func (s *Store) Close(context.Context) error {
	var errs []error
	if s.CH != nil {
		errs = append(errs, s.CH.Close())
	}
	if c, ok := s.PG.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
