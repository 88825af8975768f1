// Package ch provides a clickhouse client over the native protocol
package ch

import (
	"context"
	"fmt"
	"strings"
	"time"

	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/logger"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures clickhouse client
type Config struct {
	URL string

	// Role and Tag are reported to the server as client info
	Role string
	Tag  string

	LogSQL       bool
	DialTimeout  time.Duration // default 5s
	MaxOpenConns int           // default 4
}

// Rows is the minimal result set iteration for ch
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// batch is the subset of driver.Batch used for inserts
type batch interface {
	Append(v ...any) error
	Send() error
	Abort() error
}

// conn is the subset of driver.Conn the client needs
type conn interface {
	prepare(ctx context.Context, query string) (batch, error)
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	Exec(ctx context.Context, query string, args ...any) error
	Ping(ctx context.Context) error
	Close() error
}

type driverConn struct{ driver.Conn }

func (d driverConn) prepare(ctx context.Context, query string) (batch, error) {
	return d.PrepareBatch(ctx, query)
}

// CH is a clickhouse client
type CH struct {
	c      conn
	logSQL bool
}

// Open parses the DSN and connects. The connection is verified lazily by Ping
func Open(_ context.Context, cfg Config) (*CH, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, perr.InvalidArgf("ch: empty url")
	}
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "ch: parse dsn")
	}
	opts.ClientInfo = BuildClientInfo(cfg.Role, cfg.Tag)
	opts.DialTimeout = cfg.DialTimeout
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	opts.MaxOpenConns = cfg.MaxOpenConns
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 4
	}

	c, err := clickhouse.Open(opts)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "ch: open")
	}
	return &CH{c: driverConn{c}, logSQL: cfg.LogSQL}, nil
}

// Insert appends rows to table in a single batch. Each row holds the values in column order
func (c *CH) Insert(ctx context.Context, table string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	b, err := c.c.prepare(ctx, "INSERT INTO "+table)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "ch: prepare insert %s", table)
	}
	for i, r := range rows {
		if err := b.Append(r...); err != nil {
			_ = b.Abort()
			return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "ch: append row %d to %s", i, table)
		}
	}
	if err := b.Send(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "ch: send %s", table)
	}
	c.trace("insert "+table, time.Since(start), len(rows))
	return nil
}

// Query runs a query and returns its rows
func (c *CH) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	start := time.Now()
	r, err := c.c.Query(ctx, query, args...)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "ch: query")
	}
	c.trace(query, time.Since(start), -1)
	return r, nil
}

// Exec runs a statement without results, such as DDL
func (c *CH) Exec(ctx context.Context, query string, args ...any) error {
	if err := c.c.Exec(ctx, query, args...); err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "ch: exec")
	}
	return nil
}

// Ping verifies connectivity
func (c *CH) Ping(ctx context.Context) error {
	if err := c.c.Ping(ctx); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "ch: ping")
	}
	return nil
}

// Close closes resources
func (c *CH) Close() error { return c.c.Close() }

func (c *CH) trace(stmt string, d time.Duration, rows int) {
	if !c.logSQL {
		return
	}
	ev := logger.Named("ch").Debug().Str("sql", compact(stmt)).Dur("elapsed", d)
	if rows >= 0 {
		ev = ev.Int("rows", rows)
	}
	ev.Msg("ch")
}

func compact(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 512 {
		return fmt.Sprintf("%s… (%d bytes)", s[:512], len(s))
	}
	return s
}
