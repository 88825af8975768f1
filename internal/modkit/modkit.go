// Package modkit wires feature modules: the stores and config each module
// receives and the options it is built from
package modkit

import (
	"reddcrawl/internal/modkit/module"
	"reddcrawl/internal/modkit/repokit"
	"reddcrawl/internal/platform/config"
	"reddcrawl/internal/platform/logger"
	"reddcrawl/internal/platform/store"
)

// Module is what the API mounts and what binaries pull ports from
type Module = module.Module

// Deps is handed to every module constructor. PG and CH are nil when the
// matching store is disabled; modules degrade instead of failing
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse
}
