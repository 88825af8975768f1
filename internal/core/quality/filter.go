// Package quality decides whether a story record is usable for training.
// Stages run in a fixed order and the first rejecting stage wins
package quality

import (
	"sync/atomic"
	"time"

	"reddcrawl/internal/core/story"
)

// Stage identifies the predicate that rejected a record
type Stage uint8

const (
	// StagePass means the record survived every stage
	StagePass Stage = iota

	// StageScoreFloor rejects records below the popularity floor
	StageScoreFloor

	// StageFreshness rejects records created too many calendar days ago
	StageFreshness

	// StageLatency rejects records discovered too late or before creation
	StageLatency

	// StageStability rejects records with a short or sparsely sampled history
	StageStability

	numStages
)

var stageNames = [numStages]string{"pass", "score_floor", "freshness", "latency", "stability"}

// String returns the stable name used in logs and the run ledger
func (s Stage) String() string {
	if s < numStages {
		return stageNames[s]
	}
	return "unknown"
}

// Stages lists the rejecting stages in evaluation order
func Stages() []Stage {
	return []Stage{StageScoreFloor, StageFreshness, StageLatency, StageStability}
}

// Policy holds the thresholds for every stage
type Policy struct {
	ScoreFloor          int64         `yaml:"score_floor" json:"score_floor"`
	RetentionDays       int           `yaml:"retention_days" json:"retention_days"`
	MaxDiscoveryLatency time.Duration `yaml:"max_discovery_latency" json:"max_discovery_latency"`
	MinHistorySpan      time.Duration `yaml:"min_history_span" json:"min_history_span"`
	EarlyWindow         time.Duration `yaml:"early_window" json:"early_window"`
	MaxEarlyGap         time.Duration `yaml:"max_early_gap" json:"max_early_gap"`
}

// DefaultPolicy returns the production thresholds
func DefaultPolicy() Policy {
	return Policy{
		ScoreFloor:          20,
		RetentionDays:       58,
		MaxDiscoveryLatency: 10 * time.Minute,
		MinHistorySpan:      24 * time.Hour,
		EarlyWindow:         3 * time.Hour,
		MaxEarlyGap:         10 * time.Minute,
	}
}

// Filter evaluates records against a Policy. It is a value type and safe for
// concurrent use as long as the clock is
type Filter struct {
	policy Policy
	now    func() time.Time
	loc    *time.Location
}

// Option configures a Filter
type Option func(*Filter)

// WithClock sets the clock used to compute today for the freshness stage
func WithClock(now func() time.Time) Option {
	return func(f *Filter) {
		if now != nil {
			f.now = now
		}
	}
}

// WithLocation sets the location in which calendar days are counted
func WithLocation(loc *time.Location) Option {
	return func(f *Filter) {
		if loc != nil {
			f.loc = loc
		}
	}
}

// New builds a Filter; the zero clock is time.Now and the zero location is time.Local
func New(p Policy, opts ...Option) Filter {
	f := Filter{policy: p, now: time.Now, loc: time.Local}
	for _, o := range opts {
		o(&f)
	}
	return f
}

// Policy returns the thresholds in use
func (f Filter) Policy() Policy { return f.policy }

// Keep reports whether s passes every stage
func (f Filter) Keep(s story.Story) bool { return f.Evaluate(s) == StagePass }

// Evaluate returns StagePass or the first stage rejecting s.
// It only reads the raw record and never fails
func (f Filter) Evaluate(s story.Story) Stage {
	switch {
	case s.Summary.Score < f.policy.ScoreFloor:
		return StageScoreFloor
	case !f.fresh(s.Summary.CreatedAt):
		return StageFreshness
	case !f.promptlyDiscovered(s.Summary.CreatedAt, s.Summary.DiscoveredAt):
		return StageLatency
	case !f.stable(s.Summary.CreatedAt, s.History.Timestamp):
		return StageStability
	}
	return StagePass
}

// fresh compares calendar dates, not elapsed time
func (f Filter) fresh(createdAt int64) bool {
	created := time.UnixMilli(createdAt).In(f.loc)
	today := f.now().In(f.loc)
	return daysBetween(created, today) < f.policy.RetentionDays
}

func (f Filter) promptlyDiscovered(createdAt, discoveredAt int64) bool {
	if discoveredAt < createdAt {
		return false
	}
	return discoveredAt-createdAt <= f.policy.MaxDiscoveryLatency.Milliseconds()
}

func (f Filter) stable(createdAt int64, ts []int64) bool {
	if len(ts) == 0 {
		return false
	}

	last := ts[0]
	for _, t := range ts {
		if t > last {
			last = t
		}
	}
	if last-createdAt < f.policy.MinHistorySpan.Milliseconds() {
		return false
	}

	window := f.policy.EarlyWindow.Milliseconds()
	maxGap := f.policy.MaxEarlyGap.Milliseconds()
	prev := ts[0]
	for _, t := range ts[1:] {
		if t-createdAt > window {
			break
		}
		if t-prev > maxGap {
			return false
		}
		prev = t
	}
	return true
}

// daysBetween counts calendar days from a to b, both already in the same location
func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// Counts tracks rejections per stage across concurrent workers
type Counts struct {
	n [numStages]atomic.Int64
}

// Observe records one evaluation outcome
func (c *Counts) Observe(s Stage) {
	if s < numStages {
		c.n[s].Add(1)
	}
}

// Add records n outcomes of one stage
func (c *Counts) Add(s Stage, n int64) {
	if s < numStages && n != 0 {
		c.n[s].Add(n)
	}
}

// Get returns the count for a stage
func (c *Counts) Get(s Stage) int64 {
	if s >= numStages {
		return 0
	}
	return c.n[s].Load()
}

// Rejected returns the total number of rejected records
func (c *Counts) Rejected() int64 {
	var total int64
	for _, s := range Stages() {
		total += c.n[s].Load()
	}
	return total
}

// Snapshot returns counts keyed by stage name, pass included
func (c *Counts) Snapshot() map[string]int64 {
	out := make(map[string]int64, numStages)
	for s := StagePass; s < numStages; s++ {
		out[s.String()] = c.n[s].Load()
	}
	return out
}
