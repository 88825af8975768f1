package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reddcrawl/internal/platform/config"
	"reddcrawl/internal/platform/logger"
	phttp "reddcrawl/internal/platform/net/http"
	"reddcrawl/internal/platform/store"

	"reddcrawl/internal/services/api"
)

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	lo := logger.FromEnv()
	if lo.Service == "" {
		lo.Service = "reddcrawl-api"
	}
	logger.Init(lo)
	l := logger.Get()

	// the ledger is required; leaderboards need ClickHouse
	chURL := chCfg.MayString("DBURL", "")
	st, err := store.Open(
		context.Background(),
		store.Config{
			AppName: "reddcrawl",
			PG: store.PGConfig{
				Enabled:     true,
				URL:         pgCfg.MustString("DBURL"),
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", false),
			},
			CH: store.CHConfig{
				Enabled: chURL != "",
				URL:     chURL,
				LogSQL:  chCfg.MayBool("LOG_SQL", false),
				Role:    "api",
			},
		},
		store.WithLogger(*l),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	srv := phttp.NewServer(root)
	api.Mount(
		srv.Router(),
		api.Options{
			Config:         root,
			Store:          st,
			Logger:         l,
			CORSOrigins:    root.MayCSV("API_CORS_ORIGINS", nil),
			EnableProfiler: root.MayBool("API_PROFILER", false),
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx, root.MayDuration("API_SHUTDOWN_GRACE", 10*time.Second)); err != nil {
		l.Error().Err(err).Msg("http server stopped")
	}
}
