package store

import (
	"context"

	"reddcrawl/internal/platform/store/ch"
)

// chAdapter exposes *ch.CH as Clickhouse; only Query needs translating
type chAdapter struct{ *ch.CH }

func (a chAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := a.CH.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return chRows{r}, nil
}

// chRows drops the Close error, which ch surfaces again through Err
type chRows struct{ ch.Rows }

func (r chRows) Close() { _ = r.Rows.Close() }
