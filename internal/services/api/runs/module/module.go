// Package module wires runs into the API using modkit
package module

import (
	"net/http"

	modkit "reddcrawl/internal/modkit"
	"reddcrawl/internal/modkit/httpkit"
	str "reddcrawl/internal/platform/strings"
	runshttp "reddcrawl/internal/services/api/runs/http"
	runsrepo "reddcrawl/internal/services/api/runs/repo"
	runssvc "reddcrawl/internal/services/api/runs/service"
)

// Module implements the runs module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(http.Handler) http.Handler
	register func(httpkit.Router)

	svc runssvc.Service
}

// New constructs the runs module. Leaderboards are served only when deps.CH is set;
// API_CACHE_TTL bounds how long rankings of finished runs stay cached
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("runs"), modkit.WithPrefix("/runs")}, opts...)...)

	var boards runsrepo.Boards
	if deps.CH != nil {
		boards = runsrepo.NewCH(deps.CH)
	}
	ttl := deps.Cfg.MayDuration("API_CACHE_TTL", defaultCacheTTL)
	svc := runssvc.New(deps.PG, runsrepo.NewPG(), boards, ttl)

	m := &Module{deps: deps, name: b.Name, prefix: b.Prefix, mws: b.Mw, svc: svc}
	m.register = func(r httpkit.Router) {
		runshttp.Register(r, m.svc)
		b.Register(r)
	}
	return m
}

// MountRoutes mounts the module routes on the given router
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		m.register(rr)
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.Required(m.name, "module name") }

// Ports returns the runs service port
func (m *Module) Ports() any { return m.svc }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.RoutePrefix(m.prefix) }
