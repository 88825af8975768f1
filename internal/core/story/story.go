// Package story holds the archived story record and the pure per-record transforms
// applied by the dataset pipeline: identity and split assignment, history repair and
// structural validation
package story

import (
	"math/big"
	"time"
)

// Split is the dataset a record is assigned to
type Split string

const (
	// SplitTrain marks records routed to the train stream
	SplitTrain Split = "train"

	// SplitTest marks records routed to the test stream
	SplitTest Split = "test"
)

// Valid reports whether s is a known split
func (s Split) Valid() bool { return s == SplitTrain || s == SplitTest }

// Story is one archived record: its summary, sampled history and derived metadata
type Story struct {
	Summary Summary `json:"summary"`
	History History `json:"history"`
	Meta    *Meta   `json:"meta,omitempty"`
	Set     Split   `json:"set,omitempty"`
}

// Summary is the story snapshot taken by the crawler
type Summary struct {
	ID            string  `json:"id" validate:"required,notblank"`
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	CreatedAt     int64   `json:"createdAt" validate:"gt=0"`
	DiscoveredAt  int64   `json:"discoveredAt" validate:"gt=0"`
	Domain        *string `json:"domain"`
	URL           *string `json:"url"`
	Thumbnail     *string `json:"thumbnail"`
	Permalink     *string `json:"permalink"`
	Score         int64   `json:"score"`
	Comments      int64   `json:"comments"`
	Hotness       float64 `json:"hotness"`
	Gilded        int64   `json:"gilded"`
	Subreddit     *string `json:"subreddit"`
	IsSelf        bool    `json:"isSelf"`
	SelfText      *string `json:"selfText"`
	IsOver18      bool    `json:"isOver18"`
	IsStickied    bool    `json:"isStickied"`
	Distinguished *string `json:"distinguished"`
}

// History holds index aligned samples, one entry per tracked timestep
type History struct {
	Timestamp []int64   `json:"timestamp" validate:"min=1"`
	Score     []int64   `json:"score" validate:"min=1"`
	Hotness   []float64 `json:"hotness,omitempty"`
	Gilded    []int64   `json:"gilded" validate:"min=1"`
	Comments  []int64   `json:"comments" validate:"min=1"`
}

// Meta is derived once per record by the assigner
type Meta struct {
	Hash        *big.Int `json:"hash"`
	MaxScore    int64    `json:"max_score"`
	MaxComments int64    `json:"max_comments"`
	MaxGilded   int64    `json:"max_gilded"`
}

// Len returns the number of tracked timesteps
func (h History) Len() int { return len(h.Timestamp) }

// Clone returns a deep copy whose slices share nothing with h
func (h History) Clone() History {
	return History{
		Timestamp: cloneSlice(h.Timestamp),
		Score:     cloneSlice(h.Score),
		Hotness:   cloneSlice(h.Hotness),
		Gilded:    cloneSlice(h.Gilded),
		Comments:  cloneSlice(h.Comments),
	}
}

// Clone returns a deep copy of s
func (s Story) Clone() Story {
	out := s
	out.History = s.History.Clone()
	if s.Meta != nil {
		m := *s.Meta
		if s.Meta.Hash != nil {
			m.Hash = new(big.Int).Set(s.Meta.Hash)
		}
		out.Meta = &m
	}
	return out
}

// Created returns createdAt as a time
func (s Story) Created() time.Time { return time.UnixMilli(s.Summary.CreatedAt) }

// Discovered returns discoveredAt as a time
func (s Story) Discovered() time.Time { return time.UnixMilli(s.Summary.DiscoveredAt) }

// Str returns the value behind a nullable string or "" when absent
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Ptr returns a pointer to v, handy for building records in code and tests
func Ptr[T any](v T) *T { return &v }

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
