package store

import (
	"context"
	"time"

	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/logger"
	"reddcrawl/internal/platform/store/ch"
	"reddcrawl/internal/platform/store/pg"
)

const (
	pingBackoffMin = 150 * time.Millisecond
	pingBackoffMax = 2 * time.Second
)

// openPG opens the pool and waits for it to answer a ping, backing off
// between attempts. Containers often accept connections late
func openPG(ctx context.Context, cfg Config, log logger.Logger) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(log)
	}
	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
	}, tracer, nil)
	if err != nil {
		return nil, err
	}

	attempts := cfg.PG.ConnectRetries
	if attempts <= 0 {
		attempts = 20
	}
	timeout := cfg.PG.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	var lastErr error
	wait := pingBackoffMin
	for i := range attempts {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = p.Pool.Ping(pctx)
		cancel()
		if lastErr == nil {
			return newPGAdapter(p), nil
		}
		log.Debug().Err(lastErr).Int("attempt", i+1).Msg("store: postgres not ready")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			p.Close()
			return nil, ctx.Err()
		case <-t.C:
		}
		wait = min(wait*2, pingBackoffMax)
	}
	p.Close()
	return nil, perr.Wrapf(lastErr, perr.ErrorCodeUnavailable, "store: postgres unreachable after %d pings", attempts)
}

func openCH(ctx context.Context, cfg Config) (Clickhouse, error) {
	c, err := ch.Open(ctx, ch.Config{
		URL:    cfg.CH.URL,
		Role:   cfg.CH.Role,
		Tag:    cfg.AppName,
		LogSQL: cfg.CH.LogSQL,
	})
	if err != nil {
		return nil, err
	}
	return chAdapter{c}, nil
}
