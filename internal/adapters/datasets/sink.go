package datasets

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Stream names written by the pipeline
const (
	StreamTrain       = "train"
	StreamTest        = "test"
	StreamFullArchive = "full-archive"
	StreamAuthors     = "meta/authors"
	StreamSubreddits  = "meta/subreddit"
	StreamDomains     = "meta/domains"
)

// ErrClosed is returned when writing to a sink after Commit or Close
var ErrClosed = errors.New("datasets: sink closed")

// Sink creates named output streams
type Sink interface {
	// Stream opens (or returns the already open) stream with the given partition count
	Stream(name string, parts int) (StreamWriter, error)

	// Commit flushes every stream and marks it complete
	Commit(ctx context.Context) error

	// Close releases resources without marking streams complete
	Close() error
}

// StreamWriter appends lines to one partition of a stream. Safe for concurrent use
type StreamWriter interface {
	WriteLine(part int, line []byte) error
	Parts() int
}

// MemorySink keeps every stream in memory, for tests and dry runs
type MemorySink struct {
	mu        sync.Mutex
	streams   map[string]*memStream
	committed bool
	closed    bool
}

// NewMemorySink returns an empty MemorySink
func NewMemorySink() *MemorySink {
	return &MemorySink{streams: map[string]*memStream{}}
}

type memStream struct {
	mu    sync.Mutex
	sink  *MemorySink
	parts [][]string
}

// Stream implements Sink
func (m *MemorySink) Stream(name string, parts int) (StreamWriter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if s, ok := m.streams[name]; ok {
		return s, nil
	}
	s := &memStream{sink: m, parts: make([][]string, max(parts, 1))}
	m.streams[name] = s
	return s, nil
}

// Commit implements Sink
func (m *MemorySink) Commit(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = true
	m.closed = true
	return nil
}

// Close implements Sink
func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Committed reports whether Commit was called
func (m *MemorySink) Committed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed
}

// Names returns the opened stream names, sorted
func (m *MemorySink) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.streams))
	for n := range m.streams {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lines returns every line of a stream, partition by partition
func (m *MemorySink) Lines(name string) []string {
	m.mu.Lock()
	s, ok := m.streams[name]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range s.parts {
		out = append(out, p...)
	}
	return out
}

// PartLines returns the lines of one partition
func (m *MemorySink) PartLines(name string, part int) []string {
	m.mu.Lock()
	s, ok := m.streams[name]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if part < 0 || part >= len(s.parts) {
		return nil
	}
	return append([]string(nil), s.parts[part]...)
}

func (s *memStream) WriteLine(part int, line []byte) error {
	s.sink.mu.Lock()
	closed := s.sink.closed
	s.sink.mu.Unlock()
	if closed {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if part < 0 || part >= len(s.parts) {
		part = 0
	}
	s.parts[part] = append(s.parts[part], string(line))
	return nil
}

func (s *memStream) Parts() int { return len(s.parts) }
