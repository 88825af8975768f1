package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"reddcrawl/internal/adapters/datasets"
	"reddcrawl/internal/adapters/ingest/storyarchive"
	"reddcrawl/internal/core/version"
	"reddcrawl/internal/modkit"
	"reddcrawl/internal/modkit/module"
	"reddcrawl/internal/platform/config"
	"reddcrawl/internal/platform/logger"
	"reddcrawl/internal/platform/store"

	processdom "reddcrawl/internal/services/process/domain"
	processmod "reddcrawl/internal/services/process/module"
	processrepo "reddcrawl/internal/services/process/repo"
)

// inputFlag collects repeated -input values
type inputFlag []string

func (f *inputFlag) String() string     { return strings.Join(*f, ",") }
func (f *inputFlag) Set(v string) error { *f = append(*f, v); return nil }

func main() {
	var inputs inputFlag
	flag.Var(&inputs, "input", "archive path, glob or http(s) url (repeatable)")
	var (
		fOut       = flag.String("out", "", "output root directory")
		fOverwrite = flag.Bool("overwrite", false, "replace existing output streams")
		fDryRun    = flag.Bool("dry-run", false, "process inputs but keep output in memory")
		fMigrate   = flag.Bool("migrate", false, "apply the ledger schema to configured stores before running")
	)
	flag.Parse()

	lo := logger.FromEnv()
	if lo.Service == "" {
		lo.Service = "reddcrawl-process"
	}
	logger.Init(lo)
	l := logger.Get()
	if len(inputs) == 0 {
		l.Fatal().Msg("at least one -input is required")
	}
	if *fOut == "" && !*fDryRun {
		l.Fatal().Msg("-out is required unless -dry-run")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, l, inputs, opts{out: *fOut, overwrite: *fOverwrite, dryRun: *fDryRun, migrate: *fMigrate})
	stop()
	os.Exit(code)
}

type opts struct {
	out       string
	overwrite bool
	dryRun    bool
	migrate   bool
}

func run(ctx context.Context, l *logger.Logger, inputs []string, o opts) int {
	bi := version.Info("reddcrawl-process")
	l.Info().Str("version", bi.Version).Str("commit", bi.Commit).Int("inputs", len(inputs)).Msg("process starting")

	root := config.New()
	st, err := openStore(ctx, root, l)
	if err != nil {
		l.Error().Err(err).Msg("store.Open failed")
		return 1
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if o.migrate {
		if err := processrepo.Migrate(ctx, st.PG, st.CH); err != nil {
			l.Error().Err(err).Msg("migrate")
			return 1
		}
	}

	deps := modkit.Deps{Cfg: root, PG: st.PG, CH: st.CH, Log: *l}
	pm, err := processmod.New(deps)
	if err != nil {
		l.Error().Err(err).Msg("process module config")
		return 2
	}
	module.Register(pm.Name(), pm.Ports())
	runner := module.MustPortsOf[processdom.RunnerPort](pm)

	refs, err := storyarchive.Resolve(inputs...)
	if err != nil {
		l.Error().Err(err).Msg("resolve inputs")
		return 2
	}

	var sink datasets.Sink
	if o.dryRun {
		sink = datasets.NewMemorySink()
	} else {
		ls, err := datasets.NewLocalSink(o.out, datasets.WithOverwrite(o.overwrite))
		if err != nil {
			l.Error().Err(err).Msg("open output")
			return 1
		}
		sink = ls
	}

	sum, err := runner.Run(ctx, refs, sink)
	if err != nil {
		l.Error().Err(err).Str("run_id", sum.RunID.String()).Msg("run failed")
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		l.Error().Err(err).Msg("write summary")
		return 1
	}
	return 0
}

// openStore enables each backend only when its DBURL is set
func openStore(ctx context.Context, root config.Conf, l *logger.Logger) (*store.Store, error) {
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	pgURL := pgCfg.MayString("DBURL", "")
	chURL := chCfg.MayString("DBURL", "")

	return store.Open(ctx, store.Config{
		AppName: "reddcrawl",
		PG: store.PGConfig{
			Enabled:     pgURL != "",
			URL:         pgURL,
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", false),
		},
		CH: store.CHConfig{
			Enabled: chURL != "",
			URL:     chURL,
			LogSQL:  chCfg.MayBool("LOG_SQL", false),
			Role:    "process",
		},
	}, store.WithLogger(*l))
}
