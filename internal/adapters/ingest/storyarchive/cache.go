package storyarchive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/logger"
)

const (
	archiveExt = ".gz"
	entryExt   = ".entry"
	tmpExt     = ".part"
	pruneEvery = 10 * time.Minute
)

// Cache keeps downloaded archives on disk so reruns over the same days skip the network.
// Next to every archive sits a small JSON entry with the response validators
type Cache struct {
	root   string
	remote *HTTPFetcher

	recheck  time.Duration
	keepFor  time.Duration
	keepSize int64

	pruneMu   sync.Mutex
	nextPrune time.Time
}

// entry is the sidecar persisted next to each cached archive
type entry struct {
	Source   string    `json:"source"`
	Tag      string    `json:"tag,omitempty"`
	Modified string    `json:"modified,omitempty"`
	Bytes    int64     `json:"bytes,omitempty"`
	Stored   time.Time `json:"stored"`
	Checked  time.Time `json:"checked"`
}

// CacheOption tunes a Cache
type CacheOption func(*Cache)

// RecheckAfter revalidates a cached archive with the origin once it was last
// confirmed more than d ago. Zero trusts the disk forever
func RecheckAfter(d time.Duration) CacheOption {
	return func(c *Cache) { c.recheck = d }
}

// KeepFor evicts archives stored longer than d ago
func KeepFor(d time.Duration) CacheOption {
	return func(c *Cache) { c.keepFor = d }
}

// KeepBytes evicts the oldest archives once the cache grows past n bytes
func KeepBytes(n int64) CacheOption {
	return func(c *Cache) { c.keepSize = n }
}

// NewCache stores archives under root and downloads misses through remote
func NewCache(root string, remote *HTTPFetcher, opts ...CacheOption) (*Cache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "storyarchive: cache dir %s", root)
	}
	if remote == nil {
		remote = NewHTTPFetcher(0, 0, 0)
	}
	c := &Cache{root: root, remote: remote}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Fetch implements Fetcher. Local refs are opened in place
func (c *Cache) Fetch(ctx context.Context, ref InputRef) (io.ReadCloser, error) {
	if !ref.Remote() {
		return FileFetcher{}.Fetch(ctx, ref)
	}
	defer c.prune()

	archive := c.locate(ref)
	fi, err := os.Stat(archive)
	if err != nil || !fi.Mode().IsRegular() {
		return c.download(ctx, ref, archive, nil)
	}

	e := readEntry(archive + entryExt)
	if c.stale(e) {
		rc, err := c.download(ctx, ref, archive, e)
		if err == nil {
			return rc, nil
		}
		logger.C(ctx).Debug().Err(err).Str("input", ref.String()).
			Msg("storyarchive: recheck failed, using disk copy")
	}
	f, err := os.Open(archive)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "storyarchive: open cached %s", archive)
	}
	return f, nil
}

// locate names the archive after a digest of its URL plus its base name
func (c *Cache) locate(ref InputRef) string {
	sum := sha256.Sum256([]byte(ref.Location))
	base := strings.TrimSuffix(ref.Base(), archiveExt)
	return filepath.Join(c.root, hex.EncodeToString(sum[:8])+"-"+base+archiveExt)
}

func (c *Cache) stale(e *entry) bool {
	switch {
	case c.recheck <= 0:
		return false
	case e == nil:
		return true
	default:
		return time.Since(e.Checked) > c.recheck
	}
}

// download fetches ref. With a prior entry the request is conditional and a 304
// reopens the disk copy
func (c *Cache) download(ctx context.Context, ref InputRef, archive string, prior *entry) (io.ReadCloser, error) {
	var hdr http.Header
	if prior != nil {
		hdr = http.Header{}
		if prior.Tag != "" {
			hdr.Set("If-None-Match", prior.Tag)
		}
		if prior.Modified != "" {
			hdr.Set("If-Modified-Since", prior.Modified)
		}
	}
	resp, err := c.remote.get(ctx, ref, hdr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified && prior != nil:
		prior.Checked = time.Now().UTC()
		_ = writeEntry(archive+entryExt, prior)
		return os.Open(archive)
	case resp.StatusCode != http.StatusOK:
		return nil, statusError(resp, ref)
	}

	n, err := spool(resp.Body, archive)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "storyarchive: download %s", ref)
	}
	now := time.Now().UTC()
	_ = writeEntry(archive+entryExt, &entry{
		Source:   ref.Location,
		Tag:      strings.TrimSpace(resp.Header.Get("ETag")),
		Modified: strings.TrimSpace(resp.Header.Get("Last-Modified")),
		Bytes:    n,
		Stored:   now,
		Checked:  now,
	})

	f, err := os.Open(archive)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "storyarchive: reopen %s", archive)
	}
	// fresh downloads hide Name so IsCacheHit reports false
	return struct{ io.ReadCloser }{f}, nil
}

// spool copies r into dst through a temp file renamed into place
func spool(r io.Reader, dst string) (int64, error) {
	tmp := dst + tmpExt
	defer func() { _ = os.Remove(tmp) }()

	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	return n, os.Rename(tmp, dst)
}

func readEntry(path string) *entry {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	e := new(entry)
	if json.Unmarshal(raw, e) != nil {
		return nil
	}
	return e
}

func writeEntry(path string, e *entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	tmp := path + tmpExt
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// prune runs retention at most once per pruneEvery
func (c *Cache) prune() {
	if c.keepFor <= 0 && c.keepSize <= 0 {
		return
	}
	c.pruneMu.Lock()
	now := time.Now()
	if now.Before(c.nextPrune) {
		c.pruneMu.Unlock()
		return
	}
	c.nextPrune = now.Add(pruneEvery)
	c.pruneMu.Unlock()

	if err := c.evict(now); err != nil {
		logger.Named("storyarchive").Warn().Err(err).Str("dir", c.root).Msg("storyarchive: cache prune failed")
	}
}

// evict drops expired archives, then the oldest ones until the size bound holds
func (c *Cache) evict(now time.Time) error {
	des, err := os.ReadDir(c.root)
	if err != nil {
		return err
	}
	type held struct {
		path string
		size int64
		mod  time.Time
	}
	drop := func(path string) {
		_ = os.Remove(path)
		_ = os.Remove(path + entryExt)
	}

	var kept []held
	var used int64
	for _, de := range des {
		if !strings.HasSuffix(de.Name(), archiveExt) {
			continue
		}
		fi, err := de.Info()
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		path := filepath.Join(c.root, de.Name())
		if c.keepFor > 0 && now.Sub(fi.ModTime()) > c.keepFor {
			drop(path)
			continue
		}
		kept = append(kept, held{path: path, size: fi.Size(), mod: fi.ModTime()})
		used += fi.Size()
	}

	if c.keepSize <= 0 {
		return nil
	}
	slices.SortFunc(kept, func(a, b held) int { return a.mod.Compare(b.mod) })
	for _, h := range kept {
		if used <= c.keepSize {
			break
		}
		drop(h.path)
		used -= h.size
	}
	return nil
}
