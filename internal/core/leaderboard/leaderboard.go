// Package leaderboard sums max scores per author, subreddit and domain over the
// unfiltered corpus and ranks the totals
package leaderboard

import (
	"cmp"
	"slices"
	"strconv"
	"sync"

	"reddcrawl/internal/core/story"
	perr "reddcrawl/internal/platform/errors"
)

// Kind names one grouping
type Kind string

const (
	// KindAuthors groups by summary.author
	KindAuthors Kind = "authors"

	// KindSubreddits groups by summary.subreddit
	KindSubreddits Kind = "subreddits"

	// KindDomains groups by summary.domain with self posts folded into SelfDomain
	KindDomains Kind = "domains"
)

// SelfDomain is the single bucket every self post is mapped to, always with value 0
const SelfDomain = "self.domain"

// Kinds returns every grouping in output order
func Kinds() []Kind { return []Kind{KindAuthors, KindSubreddits, KindDomains} }

// ParseKind validates a kind name
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", perr.InvalidArgf("leaderboard: unknown kind %q", s)
}

// Entry is one ranked key
type Entry struct {
	Key   string `json:"key"`
	Total int64  `json:"total"`
}

// Line renders the entry for the kind's text stream.
// Authors put the total first; subreddits and domains put the key first
func (e Entry) Line(k Kind) string {
	total := strconv.FormatInt(e.Total, 10)
	if k == KindAuthors {
		return total + "," + e.Key
	}
	return e.Key + "," + total
}

// Partial accumulates sums for one task. It is not safe for concurrent use
type Partial struct {
	sums map[Kind]map[string]int64
}

// NewPartial returns an empty partial
func NewPartial() *Partial {
	p := &Partial{sums: make(map[Kind]map[string]int64, 3)}
	for _, k := range Kinds() {
		p.sums[k] = map[string]int64{}
	}
	return p
}

// Add folds one annotated record into the partial.
// Records without meta contribute nothing; absent keys are skipped per grouping
func (p *Partial) Add(s story.Story) {
	if s.Meta == nil {
		return
	}
	v := s.Meta.MaxScore
	p.add(KindAuthors, story.Str(s.Summary.Author), v)
	p.add(KindSubreddits, story.Str(s.Summary.Subreddit), v)
	if s.Summary.IsSelf {
		p.sums[KindDomains][SelfDomain] += 0
		return
	}
	p.add(KindDomains, story.Str(s.Summary.Domain), v)
}

func (p *Partial) add(k Kind, key string, v int64) {
	key = NormalizeKey(key)
	if key == "" {
		return
	}
	p.sums[k][key] += v
}

// Aggregator merges partials from concurrent tasks
type Aggregator struct {
	mu   sync.Mutex
	sums map[Kind]map[string]int64
}

// New returns an empty aggregator
func New() *Aggregator {
	return &Aggregator{sums: NewPartial().sums}
}

// Merge folds p into the aggregator. Order of merges does not matter
func (a *Aggregator) Merge(p *Partial) {
	if p == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, m := range p.sums {
		dst := a.sums[k]
		for key, v := range m {
			dst[key] += v
		}
	}
}

// Rankings returns each grouping sorted by total descending then key ascending
func (a *Aggregator) Rankings() map[Kind][]Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[Kind][]Entry, len(a.sums))
	for k, m := range a.sums {
		out[k] = rank(m)
	}
	return out
}

// Ranking returns a single grouping
func (a *Aggregator) Ranking(k Kind) []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return rank(a.sums[k])
}

func rank(m map[string]int64) []Entry {
	es := make([]Entry, 0, len(m))
	for key, v := range m {
		es = append(es, Entry{Key: key, Total: v})
	}
	slices.SortFunc(es, func(x, y Entry) int {
		if c := cmp.Compare(y.Total, x.Total); c != 0 {
			return c
		}
		return cmp.Compare(x.Key, y.Key)
	})
	return es
}
