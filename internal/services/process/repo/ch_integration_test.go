//go:build integration_ch
// +build integration_ch

package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"reddcrawl/internal/core/leaderboard"
	"reddcrawl/internal/platform/store"

	"github.com/google/uuid"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startClickHouse(t *testing.T) store.Clickhouse {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.8-alpine",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"CLICKHOUSE_USER":     "default",
				"CLICKHOUSE_PASSWORD": "test",
			},
			WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start clickhouse: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, _ := c.Host(ctx)
	mp, _ := c.MappedPort(ctx, "9000/tcp")
	dsn := fmt.Sprintf("clickhouse://default:test@%s:%s/default", host, mp.Port())

	st, err := store.Open(ctx, store.Config{CH: store.CHConfig{Enabled: true, URL: dsn, Role: "test"}})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	if err := Migrate(ctx, nil, st.CH); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return st.CH
}

func TestCH_Integration_LeaderboardsAndStages(t *testing.T) {
	db := startClickHouse(t)
	ctx := context.Background()
	runID := uuid.New()
	r := NewCH(db)

	rankings := map[leaderboard.Kind][]leaderboard.Entry{
		leaderboard.KindAuthors:    {{Key: "alice", Total: 600}, {Key: "bob", Total: 15}},
		leaderboard.KindSubreddits: {{Key: "golang", Total: 615}},
	}
	if err := r.InsertLeaderboards(ctx, runID, rankings); err != nil {
		t.Fatalf("InsertLeaderboards: %v", err)
	}
	if err := r.InsertStageCounts(ctx, runID, map[string]int64{"pass": 1, "score_floor": 1}); err != nil {
		t.Fatalf("InsertStageCounts: %v", err)
	}

	rows, err := db.Query(ctx,
		`SELECT key, rank, total FROM leaderboard_entries WHERE run_id = ? AND kind = 'authors' ORDER BY rank`, runID.String())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	var got []string
	for rows.Next() {
		var key string
		var rank uint32
		var total int64
		if err := rows.Scan(&key, &rank, &total); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, fmt.Sprintf("%d:%s:%d", rank, key, total))
	}
	if len(got) != 2 || got[0] != "1:alice:600" || got[1] != "2:bob:15" {
		t.Fatalf("authors = %v", got)
	}
}
