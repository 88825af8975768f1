// Package module provides the process module implementation
package module

import (
	"reddcrawl/internal/adapters/datasets"
	"reddcrawl/internal/core/quality"
	"reddcrawl/internal/core/story"
	"reddcrawl/internal/modkit"
	phttp "reddcrawl/internal/platform/net/http"
	"reddcrawl/internal/services/process/domain"
	"reddcrawl/internal/services/process/executor"
	"reddcrawl/internal/services/process/ingest"
	"reddcrawl/internal/services/process/repo"
	"reddcrawl/internal/services/process/service"
)

// Ports defines the process module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the process module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs the process module from deps.Cfg.
// The run ledger is enabled when deps.PG is set and the rankings store when deps.CH is set
func New(deps modkit.Deps) (*Module, error) {
	opts, err := FromConfig(deps.Cfg)
	if err != nil {
		return nil, err
	}
	loc, err := opts.Location()
	if err != nil {
		return nil, err
	}
	assigner, err := story.NewAssigner(opts.Policy.TestSize)
	if err != nil {
		return nil, err
	}

	fetch, err := ingest.NewFetcher(deps) // uses CORE_INGEST_* from deps.Cfg
	if err != nil {
		return nil, err
	}
	reader := ingest.NewReaderFactory()

	pipeline := service.NewPipeline(
		assigner,
		quality.New(opts.Policy.Filter, quality.WithLocation(loc)),
		datasets.NewPartitioner(opts.Policy.Partitioner),
	)

	svc := service.New(fetch, reader, executor.New(opts.Workers), pipeline, service.Config{
		ShardCount:      opts.Policy.ShardCount,
		TrainPartitions: opts.Policy.TrainPartitions,
		MaxRetries:      opts.MaxRetries,
		RetryBase:       opts.RetryBase,
		InputTimeout:    opts.InputTimeout,
		FetchTimeout:    opts.FetchTimeout,
		ReadTimeout:     opts.ReadTimeout,
		LedgerTimeout:   opts.LedgerTimeout,
		Policy:          opts.Policy,
	})
	if deps.PG != nil {
		svc.WithLedger(deps.PG, repo.NewPG())
	}
	if deps.CH != nil {
		svc.WithLeaderboards(repo.NewCH(deps.CH))
	}

	return &Module{deps: deps, opts: opts, ports: Ports{Runner: svc}}, nil
}

// Name returns the module name
func (m *Module) Name() string { return "process" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Runner returns the typed runner port
func (m *Module) Runner() domain.RunnerPort { return m.ports.Runner }

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// MountRoutes is a no-op as process has no routes
func (m *Module) MountRoutes(_ phttp.Router) {}
