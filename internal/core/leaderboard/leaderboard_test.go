package leaderboard

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"reddcrawl/internal/core/story"
)

func rec(author, sub, domain string, self bool, maxScore int64) story.Story {
	s := story.Story{
		Summary: story.Summary{ID: author + sub + domain, IsSelf: self},
		Meta:    &story.Meta{MaxScore: maxScore},
	}
	if author != "" {
		s.Summary.Author = story.Ptr(author)
	}
	if sub != "" {
		s.Summary.Subreddit = story.Ptr(sub)
	}
	if domain != "" {
		s.Summary.Domain = story.Ptr(domain)
	}
	return s
}

func TestAggregator_TotalsAndOrder(t *testing.T) {
	t.Parallel()

	p := NewPartial()
	for _, s := range []story.Story{
		rec("alice", "golang", "go.dev", false, 100),
		rec("bob", "golang", "github.com", false, 50),
		rec("alice", "rust", "github.com", false, 70),
		rec("carol", "rust", "self.rust", true, 500),
	} {
		p.Add(s)
	}
	a := New()
	a.Merge(p)

	wantAuthors := []Entry{{"carol", 500}, {"alice", 170}, {"bob", 50}}
	if got := a.Ranking(KindAuthors); !reflect.DeepEqual(got, wantAuthors) {
		t.Fatalf("authors = %v, want %v", got, wantAuthors)
	}
	wantSubs := []Entry{{"rust", 570}, {"golang", 150}}
	if got := a.Ranking(KindSubreddits); !reflect.DeepEqual(got, wantSubs) {
		t.Fatalf("subreddits = %v, want %v", got, wantSubs)
	}
	wantDomains := []Entry{{"github.com", 120}, {"go.dev", 100}, {SelfDomain, 0}}
	if got := a.Ranking(KindDomains); !reflect.DeepEqual(got, wantDomains) {
		t.Fatalf("domains = %v, want %v", got, wantDomains)
	}
}

func TestAggregator_SelfPostsNeverScoreTheirDomain(t *testing.T) {
	t.Parallel()

	p := NewPartial()
	p.Add(rec("a", "s", "self.s", true, 1000))
	p.Add(rec("b", "s", "self.s", true, 2000))
	a := New()
	a.Merge(p)

	for _, e := range a.Ranking(KindDomains) {
		if e.Key == "self.s" {
			t.Fatalf("self post domain leaked into ranking: %v", e)
		}
		if e.Key == SelfDomain && e.Total != 0 {
			t.Fatalf("sentinel total = %d, want 0", e.Total)
		}
	}
}

func TestAggregator_TiesBreakByKey(t *testing.T) {
	t.Parallel()

	p := NewPartial()
	p.Add(rec("zed", "", "", false, 10))
	p.Add(rec("amy", "", "", false, 10))
	p.Add(rec("kim", "", "", false, 10))
	a := New()
	a.Merge(p)

	got := a.Ranking(KindAuthors)
	want := []Entry{{"amy", 10}, {"kim", 10}, {"zed", 10}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ties = %v, want %v", got, want)
	}
	if n := len(a.Ranking(KindSubreddits)); n != 0 {
		t.Fatalf("absent subreddits should be skipped, got %d entries", n)
	}
}

func TestAggregator_MergeOrderIndependent(t *testing.T) {
	t.Parallel()

	const parts = 8
	partials := make([]*Partial, parts)
	for i := range parts {
		partials[i] = NewPartial()
		for j := range 50 {
			partials[i].Add(rec(fmt.Sprintf("u%d", j%7), "sub", "d.com", false, int64(i*j)))
		}
	}

	serial := New()
	for _, p := range partials {
		serial.Merge(p)
	}

	concurrent := New()
	var wg sync.WaitGroup
	for i := parts - 1; i >= 0; i-- {
		wg.Add(1)
		go func(p *Partial) {
			defer wg.Done()
			concurrent.Merge(p)
		}(partials[i])
	}
	wg.Wait()

	if !reflect.DeepEqual(serial.Rankings(), concurrent.Rankings()) {
		t.Fatalf("merge order changed rankings")
	}
}

func TestAggregator_SkipsRecordsWithoutMeta(t *testing.T) {
	t.Parallel()

	p := NewPartial()
	s := rec("a", "b", "c", false, 5)
	s.Meta = nil
	p.Add(s)
	a := New()
	a.Merge(p)
	a.Merge(nil)
	for k, es := range a.Rankings() {
		if len(es) != 0 {
			t.Fatalf("%s = %v, want empty", k, es)
		}
	}
}

func TestEntry_Line(t *testing.T) {
	t.Parallel()

	e := Entry{Key: "golang", Total: 42}
	if got := e.Line(KindAuthors); got != "42,golang" {
		t.Fatalf("authors line = %q", got)
	}
	if got := e.Line(KindSubreddits); got != "golang,42" {
		t.Fatalf("subreddits line = %q", got)
	}
	if got := e.Line(KindDomains); got != "golang,42" {
		t.Fatalf("domains line = %q", got)
	}
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"  padded ", "padded"},
		{"new\nline", "newline"},
		{"zero\u200bwidth", "zerowidth"},
		{"cafe\u0301", "caf\u00e9"},
		{string([]byte{'a', 0xff, 'b'}), "ab"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeKey(c.in); got != c.want {
			t.Fatalf("NormalizeKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	if k, err := ParseKind("domains"); err != nil || k != KindDomains {
		t.Fatalf("ParseKind(domains) = %v, %v", k, err)
	}
	if _, err := ParseKind("nope"); err == nil {
		t.Fatalf("expected error")
	}
}
