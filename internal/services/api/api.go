// Package api provides the read only HTTP API over run ledgers
package api

import (
	"context"
	"net/http"
	"time"

	"reddcrawl/internal/core/version"
	"reddcrawl/internal/modkit"
	"reddcrawl/internal/modkit/httpkit"
	"reddcrawl/internal/modkit/module"
	"reddcrawl/internal/platform/config"
	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/logger"
	phttp "reddcrawl/internal/platform/net/http"
	"reddcrawl/internal/platform/store"

	runsmod "reddcrawl/internal/services/api/runs/module"
)

// Guarder reports whether the configured stores are reachable
type Guarder interface {
	Guard(ctx context.Context) error
}

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	CORSOrigins    []string
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
	}
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}

	mods := []module.Module{
		runsmod.New(deps),
	}

	r.Get("/healthz", healthz(opt.Store))
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	httpkit.MountAPIV1(r, httpkit.Stack(opt.CORSOrigins), func(api httpkit.Router) {
		for _, m := range mods {
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})
}

// healthz pings every configured store
func healthz(g Guarder) phttp.Handler {
	return httpkit.Call(func(r *http.Request) (any, error) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := g.Guard(ctx); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "stores unavailable")
		}
		return map[string]any{"status": "ok", "build": version.Info("reddcrawl-api")}, nil
	})
}
