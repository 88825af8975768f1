// Package ingest holds adapter shims for process ingest ports
package ingest

import (
	"time"

	"reddcrawl/internal/adapters/ingest/storyarchive"
	"reddcrawl/internal/modkit"
	"reddcrawl/internal/services/process/domain"
)

// NewFetcher builds a domain.Fetcher from CORE_INGEST_* config.
// Local paths are opened directly; URLs go through the disk cache when CACHE_DIR is set
func NewFetcher(deps modkit.Deps) (domain.Fetcher, error) {
	ing := deps.Cfg.Prefix("CORE_INGEST_")

	httpTO := ing.MayDuration("HTTP_TIMEOUT", 0) // 0 == no client timeout
	base := storyarchive.NewHTTPFetcher(
		httpTO,
		ing.MayFloat64("RPS", 4),
		ing.MayInt("BURST", 4),
	)

	cacheDir := ing.MayString("CACHE_DIR", "")
	if cacheDir == "" {
		return storyarchive.RouteFetcher{Local: storyarchive.FileFetcher{}, Remote: base}, nil
	}

	retainDays := ing.MayInt("RETAIN_MAX_DAYS", 0)
	cached, err := storyarchive.NewCache(
		cacheDir,
		base,
		storyarchive.RecheckAfter(ing.MayDuration("REVALIDATE_AFTER", 0)),
		storyarchive.KeepFor(time.Duration(retainDays)*24*time.Hour),
		storyarchive.KeepBytes(int64(ing.MayInt("RETAIN_MAX_BYTES", 0))),
	)
	if err != nil {
		return nil, err
	}
	return storyarchive.RouteFetcher{Local: storyarchive.FileFetcher{}, Remote: cached}, nil
}
