// Package domain holds the types and ports of the story processing run
package domain

import (
	"time"

	"reddcrawl/internal/adapters/ingest/storyarchive"

	"github.com/google/uuid"
)

// InputRef re-exports the archive reference used by fetchers and the ledger
type InputRef = storyarchive.InputRef

// ReaderStats re-exports the per archive reader counters
type ReaderStats = storyarchive.Stats

// Run and input statuses stored in the ledger
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusError   = "error"
)

// Counters summarizes a run. Maps are keyed by reason or stage name
type Counters struct {
	Inputs            int              `json:"inputs"`
	Records           int64            `json:"records"`
	Valid             int64            `json:"valid"`
	Malformed         map[string]int64 `json:"malformed"`
	Rejected          map[string]int64 `json:"rejected"`
	Train             int64            `json:"train"`
	Test              int64            `json:"test"`
	Archived          int64            `json:"archived"`
	BytesUncompressed int64            `json:"bytes_uncompressed"`
}

// Summary is what a finished run reports to its caller
type Summary struct {
	RunID    uuid.UUID     `json:"run_id"`
	Counters Counters      `json:"counters"`
	Elapsed  time.Duration `json:"elapsed"`
}

// InputFinish is the ledger row written when an input completes
type InputFinish struct {
	Status            string
	CacheHit          bool
	Records           int
	Malformed         int
	BytesUncompressed int64
	FetchMS           int
	ReadMS            int
	ElapsedMS         int
	ErrText           string
}

// RunFinish is the ledger row written when a run completes
type RunFinish struct {
	Status   string
	Counters Counters
	ErrText  string
}
