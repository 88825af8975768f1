package repo

import (
	"context"

	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/logger"
	"reddcrawl/internal/platform/store"
	"reddcrawl/internal/services/process/repo/schema"
)

// Migrate applies the idempotent ledger DDL to whichever stores are configured
func Migrate(ctx context.Context, pg store.RowQuerier, ch store.Clickhouse) error {
	log := logger.Named("process.migrate")
	if pg != nil {
		for _, stmt := range schema.Statements(schema.Postgres()) {
			if _, err := pg.Exec(ctx, stmt); err != nil {
				return perr.FromPostgresWithField(err, "process: migrate postgres")
			}
		}
		log.Info().Msg("postgres ledger schema applied")
	}
	if ch != nil {
		for _, stmt := range schema.ClickHouse() {
			if err := ch.Exec(ctx, stmt); err != nil {
				return perr.Wrap(err, perr.ErrorCodeDB, "process: migrate clickhouse")
			}
		}
		log.Info().Msg("clickhouse leaderboard schema applied")
	}
	return nil
}
