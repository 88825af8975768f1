package datasets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"reddcrawl/internal/core/story"
	perr "reddcrawl/internal/platform/errors"

	"github.com/klauspost/compress/gzip"
)

func readPart(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip %s: %v", path, err)
	}
	defer gz.Close()
	var out []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return out
}

func TestLocalSink_WritesPartsAndMarker(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sink, err := NewLocalSink(root)
	if err != nil {
		t.Fatalf("NewLocalSink: %v", err)
	}
	w, err := sink.Stream(StreamTrain, 4)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if w.Parts() != 4 {
		t.Fatalf("Parts = %d", w.Parts())
	}

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := w.WriteLine(i%4, []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
				t.Errorf("WriteLine: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if err := sink.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	dir := filepath.Join(root, StreamTrain)
	if _, err := os.Stat(filepath.Join(dir, SuccessMarker)); err != nil {
		t.Fatalf("missing marker: %v", err)
	}
	total := 0
	for p := range 4 {
		lines := readPart(t, filepath.Join(dir, fmt.Sprintf("part-%05d.gz", p)))
		if len(lines) != 10 {
			t.Fatalf("part %d has %d lines, want 10", p, len(lines))
		}
		total += len(lines)
	}
	if total != 40 {
		t.Fatalf("total = %d", total)
	}

	if err := w.WriteLine(0, []byte("late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("write after commit = %v, want ErrClosed", err)
	}
}

func TestLocalSink_NestedStreamAndEmptyStream(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sink, err := NewLocalSink(root)
	if err != nil {
		t.Fatal(err)
	}
	authors, _ := sink.Stream(StreamAuthors, 1)
	if err := authors.WriteLine(0, []byte("10,alice")); err != nil {
		t.Fatal(err)
	}
	if _, err := sink.Stream(StreamTest, 1); err != nil {
		t.Fatal(err)
	}
	if err := sink.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got := readPart(t, filepath.Join(root, "meta", "authors", "part-00000.gz"))
	if len(got) != 1 || got[0] != "10,alice" {
		t.Fatalf("authors = %v", got)
	}
	if got := readPart(t, filepath.Join(root, StreamTest, "part-00000.gz")); len(got) != 0 {
		t.Fatalf("empty stream has %v", got)
	}
}

func TestLocalSink_RefusesExistingOutput(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, StreamTrain)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "part-00000.gz"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink, _ := NewLocalSink(root)
	_, err := sink.Stream(StreamTrain, 1)
	if !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}

	sink, _ = NewLocalSink(root, WithOverwrite(true))
	if _, err := sink.Stream(StreamTrain, 1); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, SuccessMarker)); !os.IsNotExist(err) {
		t.Fatalf("Close must not mark stream complete: %v", err)
	}
}

func TestLocalSink_PartitionOutOfRange(t *testing.T) {
	t.Parallel()

	sink, _ := NewLocalSink(t.TempDir())
	w, _ := sink.Stream(StreamTest, 1)
	if err := w.WriteLine(3, []byte("x")); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
	_ = sink.Close()
}

func TestMemorySink(t *testing.T) {
	t.Parallel()

	m := NewMemorySink()
	w, _ := m.Stream(StreamFullArchive, 2)
	_ = w.WriteLine(1, []byte("b"))
	_ = w.WriteLine(0, []byte("a"))
	again, _ := m.Stream(StreamFullArchive, 99)
	if again.Parts() != 2 {
		t.Fatalf("reopened stream changed parts: %d", again.Parts())
	}
	if got := m.Lines(StreamFullArchive); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Lines = %v", got)
	}
	if got := m.PartLines(StreamFullArchive, 1); len(got) != 1 || got[0] != "b" {
		t.Fatalf("PartLines = %v", got)
	}
	if err := m.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !m.Committed() {
		t.Fatalf("not committed")
	}
	if err := w.WriteLine(0, []byte("c")); !errors.Is(err, ErrClosed) {
		t.Fatalf("write after commit = %v", err)
	}
	if names := m.Names(); len(names) != 1 {
		t.Fatalf("Names = %v", names)
	}
}

func TestPartitioners(t *testing.T) {
	t.Parallel()

	s := story.Story{Summary: story.Summary{ID: "abc"}}
	h := HashPartitioner{Salt: "x"}
	first := h.Choose(s, 256)
	for range 10 {
		if h.Choose(s, 256) != first {
			t.Fatalf("hash partitioner not deterministic")
		}
	}
	if h.Choose(s, 1) != 0 || h.Choose(s, 0) != 0 {
		t.Fatalf("single partition must be 0")
	}

	seen := map[int]bool{}
	r := NewPartitioner("random")
	for range 2000 {
		p := r.Choose(s, 8)
		if p < 0 || p >= 8 {
			t.Fatalf("out of range %d", p)
		}
		seen[p] = true
	}
	keys := make([]int, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	if len(keys) != 8 {
		t.Fatalf("random partitioner hit %v", keys)
	}

	if _, ok := NewPartitioner("hash").(HashPartitioner); !ok {
		t.Fatalf("hash strategy not selected")
	}
}
