// Package domain holds DTOs for the runs http and service contracts
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run is one processing run as recorded in the ledger
type Run struct {
	ID         uuid.UUID       `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Status     string          `json:"status"`
	Policy     json.RawMessage `json:"policy,omitempty"`
	Counters   json.RawMessage `json:"counters,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Finished reports whether the run reached a terminal status
func (r Run) Finished() bool { return r.Status == "ok" || r.Status == "error" }

// Input is the ledger row of one archive within a run
type Input struct {
	Input             string     `json:"input"`
	Status            string     `json:"status"`
	StartedAt         time.Time  `json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	CacheHit          bool       `json:"cache_hit"`
	Records           int        `json:"records"`
	Malformed         int        `json:"malformed"`
	BytesUncompressed int64      `json:"bytes_uncompressed"`
	FetchMS           int        `json:"fetch_ms"`
	ReadMS            int        `json:"read_ms"`
	ElapsedMS         int        `json:"elapsed_ms"`
	Error             string     `json:"error,omitempty"`
}

// RunDetail is a run with its inputs
type RunDetail struct {
	Run
	Inputs []Input `json:"inputs"`
}

// ListRunsInput filters the run list
type ListRunsInput struct {
	Status string `query:"status" validate:"omitempty,oneof=running ok error"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `query:"offset" validate:"omitempty,min=0"`
}

// LeaderboardInput bounds a leaderboard page
type LeaderboardInput struct {
	Limit int `query:"limit" validate:"omitempty,min=1,max=1000"`
}

// Entry is one ranked key
type Entry struct {
	Rank  uint32 `json:"rank"`
	Key   string `json:"key"`
	Total int64  `json:"total"`
}

// Leaderboard is the top of one ranking of a run
type Leaderboard struct {
	RunID   uuid.UUID `json:"run_id"`
	Kind    string    `json:"kind"`
	Entries []Entry   `json:"entries"`
}
