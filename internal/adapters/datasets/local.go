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

	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/logger"

	"github.com/klauspost/compress/gzip"
)

// SuccessMarker is written into a stream directory once it is complete
const SuccessMarker = "_SUCCESS"

// LocalSink writes streams under a root directory as <root>/<stream>/part-NNNNN.gz
type LocalSink struct {
	root      string
	overwrite bool
	level     int

	mu      sync.Mutex
	streams map[string]*fileStream
	closed  bool
}

// LocalOption configures a LocalSink
type LocalOption func(*LocalSink)

// WithOverwrite replaces existing stream directories instead of failing
func WithOverwrite(v bool) LocalOption {
	return func(s *LocalSink) { s.overwrite = v }
}

// WithLevel sets the gzip compression level
func WithLevel(level int) LocalOption {
	return func(s *LocalSink) { s.level = level }
}

// NewLocalSink creates root if needed
func NewLocalSink(root string, opts ...LocalOption) (*LocalSink, error) {
	s := &LocalSink{root: root, level: gzip.DefaultCompression, streams: map[string]*fileStream{}}
	for _, o := range opts {
		o(s)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "datasets: create root %s", root)
	}
	return s, nil
}

// Root returns the output root
func (s *LocalSink) Root() string { return s.root }

// Stream implements Sink
func (s *LocalSink) Stream(name string, parts int) (StreamWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if fs, ok := s.streams[name]; ok {
		return fs, nil
	}

	dir := filepath.Join(s.root, filepath.FromSlash(name))
	if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
		if !s.overwrite {
			return nil, perr.Newf(perr.ErrorCodeConflict, "datasets: stream %s already exists at %s", name, dir)
		}
		if err := os.RemoveAll(dir); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "datasets: clear %s", dir)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "datasets: create %s", dir)
	}

	fs := &fileStream{name: name, dir: dir, level: s.level, parts: make([]*partFile, max(parts, 1))}
	s.streams[name] = fs
	return fs, nil
}

// Commit implements Sink. Streams that received no lines still get an empty part 0
func (s *LocalSink) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true

	var errs []error
	for _, name := range s.sortedNames() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		fs := s.streams[name]
		if err := fs.finish(); err != nil {
			errs = append(errs, err)
			continue
		}
		marker := filepath.Join(fs.dir, SuccessMarker)
		if err := os.WriteFile(marker, nil, 0o644); err != nil {
			errs = append(errs, perr.Wrapf(err, perr.ErrorCodeUnknown, "datasets: mark %s", name))
			continue
		}
		logger.Named("datasets").Debug().
			Str("stream", name).
			Int64("lines", fs.lines()).
			Msg("stream committed")
	}
	return errors.Join(errs...)
}

// Close implements Sink
func (s *LocalSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, name := range s.sortedNames() {
		errs = append(errs, s.streams[name].closeParts())
	}
	return errors.Join(errs...)
}

func (s *LocalSink) sortedNames() []string {
	out := make([]string, 0, len(s.streams))
	for n := range s.streams {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type fileStream struct {
	name  string
	dir   string
	level int

	mu    sync.Mutex // guards lazy creation of parts
	parts []*partFile
}

type partFile struct {
	mu    sync.Mutex
	f     *os.File
	gz    *gzip.Writer
	bw    *bufio.Writer
	count int64
}

func (fs *fileStream) Parts() int { return len(fs.parts) }

func (fs *fileStream) WriteLine(part int, line []byte) error {
	p, err := fs.part(part)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bw == nil {
		return ErrClosed
	}
	if _, err := p.bw.Write(line); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "datasets: write %s", fs.name)
	}
	if err := p.bw.WriteByte('\n'); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "datasets: write %s", fs.name)
	}
	p.count++
	return nil
}

func (fs *fileStream) part(i int) (*partFile, error) {
	if i < 0 || i >= len(fs.parts) {
		return nil, perr.InvalidArgf("datasets: partition %d outside [0,%d) for %s", i, len(fs.parts), fs.name)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if p := fs.parts[i]; p != nil {
		return p, nil
	}
	path := filepath.Join(fs.dir, fmt.Sprintf("part-%05d.gz", i))
	f, err := os.Create(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "datasets: create %s", path)
	}
	gz, err := gzip.NewWriterLevel(f, fs.level)
	if err != nil {
		_ = f.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "datasets: gzip level %d", fs.level)
	}
	p := &partFile{f: f, gz: gz, bw: bufio.NewWriterSize(gz, 256*1024)}
	fs.parts[i] = p
	return p, nil
}

// finish flushes every part and makes sure at least part 0 exists
func (fs *fileStream) finish() error {
	fs.mu.Lock()
	empty := true
	for _, p := range fs.parts {
		if p != nil {
			empty = false
			break
		}
	}
	fs.mu.Unlock()
	if empty {
		if _, err := fs.part(0); err != nil {
			return err
		}
	}
	return fs.closeParts()
}

func (fs *fileStream) closeParts() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var errs []error
	for _, p := range fs.parts {
		if p == nil {
			continue
		}
		errs = append(errs, p.close())
	}
	return errors.Join(errs...)
}

func (fs *fileStream) lines() int64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var n int64
	for _, p := range fs.parts {
		if p != nil {
			p.mu.Lock()
			n += p.count
			p.mu.Unlock()
		}
	}
	return n
}

func (p *partFile) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bw == nil {
		return nil
	}
	var errs []error
	errs = append(errs, p.bw.Flush(), p.gz.Close(), p.f.Close())
	p.bw = nil
	return errors.Join(errs...)
}
