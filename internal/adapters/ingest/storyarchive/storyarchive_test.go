package storyarchive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	perr "reddcrawl/internal/platform/errors"
	kit "reddcrawl/internal/platform/testkit"
)

func drain(t *testing.T, rd *Reader) []string {
	t.Helper()
	var ids []string
	for {
		s, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return ids
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		ids = append(ids, s.Summary.ID)
	}
}

func TestReader_LinesMembersAndConcatenation(t *testing.T) {
	t.Parallel()

	data := kit.Gzip(t,
		`{"summary":{"id":"a","score":1}}`+"\n"+`{"summary":{"id":"b"}}{"summary":{"id":"c"}}`+"\n",
		"\n"+`{"summary":{"id":"d"}}`+"\n",
	)
	var bad int
	rd, err := NewReader(io.NopCloser(bytes.NewReader(data)), WithMalformedHook(func([]byte, error) { bad++ }))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer rd.Close()

	got := drain(t, rd)
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
	st := rd.Stats()
	if st.Records != 4 || st.Malformed != 0 || bad != 0 {
		t.Fatalf("stats = %+v bad=%d", st, bad)
	}
	if st.Bytes == 0 {
		t.Fatalf("bytes not counted")
	}
	if _, err := rd.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("EOF not sticky: %v", err)
	}
}

func TestReader_SkipsMalformed(t *testing.T) {
	t.Parallel()

	data := kit.Gzip(t, "not json\n"+`{"summary":{"id":"ok"}}`+"\n"+`{"summary":{"id":"x"}}{broken`+"\n")
	var bad int
	rd, err := NewReader(io.NopCloser(bytes.NewReader(data)), WithMalformedHook(func([]byte, error) { bad++ }))
	if err != nil {
		t.Fatal(err)
	}
	got := drain(t, rd)
	if len(got) != 2 || got[0] != "ok" || got[1] != "x" {
		t.Fatalf("ids = %v", got)
	}
	if st := rd.Stats(); st.Malformed != 2 || bad != 2 {
		t.Fatalf("malformed = %d hook = %d, want 2", st.Malformed, bad)
	}
}

func TestReader_OversizeLineIsSkipped(t *testing.T) {
	t.Parallel()

	long := `{"summary":{"id":"big","title":"` + strings.Repeat("x", 3*readBufferSize) + `"}}`
	wide := `{"summary":{"id":"wide","title":"` + strings.Repeat("y", readBufferSize+10) + `"}}`
	data := kit.Gzip(t, kit.Lines(`{"summary":{"id":"a"}}`, long, wide, `{"summary":{"id":"b"}}`))

	var hookErr error
	var hookRaw int
	rd, err := NewReader(io.NopCloser(bytes.NewReader(data)),
		WithMaxLineBytes(2*readBufferSize),
		WithMalformedHook(func(raw []byte, err error) { hookErr, hookRaw = err, len(raw) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer rd.Close()

	got := drain(t, rd)
	if strings.Join(got, ",") != "a,wide,b" {
		t.Fatalf("ids = %v", got)
	}
	st := rd.Stats()
	if st.Records != 3 || st.Malformed != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if !errors.Is(hookErr, ErrLineTooLong) || hookRaw > sampleRawMax {
		t.Fatalf("hook err = %v raw = %d", hookErr, hookRaw)
	}
	if want := int64(len(kit.Lines(`{"summary":{"id":"a"}}`, long, wide, `{"summary":{"id":"b"}}`))); st.Bytes != want {
		t.Fatalf("bytes = %d, want %d", st.Bytes, want)
	}
}

func TestReader_LastLineWithoutNewline(t *testing.T) {
	t.Parallel()

	data := kit.Gzip(t, `{"summary":{"id":"a"}}`+"\r\n"+`{"summary":{"id":"b"}}`)
	rd, err := NewReader(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		t.Fatal(err)
	}
	if got := drain(t, rd); strings.Join(got, ",") != "a,b" {
		t.Fatalf("ids = %v", got)
	}
	if st := rd.Stats(); st.Malformed != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestReader_NotGzip(t *testing.T) {
	t.Parallel()

	if _, err := NewReader(io.NopCloser(bytes.NewReader([]byte("plain")))); err == nil {
		t.Fatalf("expected gzip header error")
	}
}

func TestTruncateUTF8(t *testing.T) {
	t.Parallel()

	if got := truncateUTF8([]byte("héllo"), 2); got != "h..." {
		t.Fatalf("got %q", got)
	}
	if got := truncateUTF8([]byte("short"), 10); got != "short" {
		t.Fatalf("got %q", got)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, n := range []string{"b.json.gz", "a.json.gz", "c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	refs, err := Resolve(filepath.Join(dir, "*.json.gz"), "https://example.com/x/day.gz", filepath.Join(dir, "a.json.gz"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("refs = %v", refs)
	}
	if filepath.Base(refs[0].Location) != "a.json.gz" || filepath.Base(refs[1].Location) != "b.json.gz" {
		t.Fatalf("glob not sorted: %v", refs)
	}
	if !refs[2].Remote() || refs[2].Base() != "day.gz" {
		t.Fatalf("remote ref = %+v", refs[2])
	}

	if _, err := Resolve(filepath.Join(dir, "*.nope")); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if _, err := Resolve(); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("err = %v, want invalid", err)
	}
}

func TestHTTPFetcher_StatusMapping(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.gz":
			_, _ = w.Write([]byte("body"))
		case "/busy.gz":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, 100, 1)
	ctx := context.Background()

	rc, err := f.Fetch(ctx, InputRef{Location: srv.URL + "/ok.gz"})
	if err != nil {
		t.Fatalf("Fetch ok: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "body" {
		t.Fatalf("body = %q", b)
	}

	_, err = f.Fetch(ctx, InputRef{Location: srv.URL + "/busy.gz"})
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("503 err = %v", err)
	}
	_, err = f.Fetch(ctx, InputRef{Location: srv.URL + "/gone.gz"})
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("404 err = %v", err)
	}
}

func TestRouteFetcher(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "in.gz")
	if err := os.WriteFile(path, []byte("local"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := RouteFetcher{}
	rc, err := r.Fetch(context.Background(), InputRef{Location: path})
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	_ = rc.Close()
	if _, err := r.Fetch(context.Background(), InputRef{Location: "https://example.com/x.gz"}); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("remote without fetcher = %v", err)
	}
	if _, err := r.Fetch(context.Background(), InputRef{Location: path + ".missing"}); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("missing = %v", err)
	}
}

func TestCache_HitMissAndRecheck(t *testing.T) {
	t.Parallel()

	var gets, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("archive"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	c, err := NewCache(dir, NewHTTPFetcher(5*time.Second, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	ref := InputRef{Location: srv.URL + "/2015/day.gz"}
	ctx := context.Background()

	rc, err := c.Fetch(ctx, ref)
	if err != nil {
		t.Fatalf("miss: %v", err)
	}
	if IsCacheHit(rc) {
		t.Fatalf("fresh download reported as cache hit")
	}
	_ = rc.Close()

	rc, err = c.Fetch(ctx, ref)
	if err != nil {
		t.Fatalf("hit: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !IsCacheHit(rc) || string(b) != "archive" {
		t.Fatalf("hit = %v body = %q", IsCacheHit(rc), b)
	}
	if gets.Load() != 1 {
		t.Fatalf("gets = %d, want 1", gets.Load())
	}

	rv, _ := NewCache(dir, nil, RecheckAfter(time.Nanosecond))
	time.Sleep(time.Millisecond)
	rc, err = rv.Fetch(ctx, ref)
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	_ = rc.Close()
	if notModified.Load() != 1 || !IsCacheHit(rc) {
		t.Fatalf("304 path not taken: notModified=%d", notModified.Load())
	}
}
