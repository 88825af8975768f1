package storyarchive

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	perr "reddcrawl/internal/platform/errors"

	"golang.org/x/time/rate"
)

// Fetcher opens an archive for reading
type Fetcher interface {
	Fetch(ctx context.Context, ref InputRef) (io.ReadCloser, error)
}

// FileFetcher opens local archives
type FileFetcher struct{}

// Fetch implements Fetcher
func (FileFetcher) Fetch(ctx context.Context, ref InputRef) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(ref.Location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "storyarchive: %s not found", ref)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "storyarchive: open %s", ref)
	}
	return f, nil
}

// HTTPFetcher downloads archives over http(s), paced by a token bucket
type HTTPFetcher struct {
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewHTTPFetcher builds an HTTPFetcher. rps <= 0 disables pacing; timeout 0 means no client timeout
func NewHTTPFetcher(timeout time.Duration, rps float64, burst int) *HTTPFetcher {
	f := &HTTPFetcher{Client: &http.Client{Timeout: timeout}}
	if rps > 0 {
		f.Limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
	return f
}

// Fetch implements Fetcher
func (f *HTTPFetcher) Fetch(ctx context.Context, ref InputRef) (io.ReadCloser, error) {
	resp, err := f.get(ctx, ref, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, ref)
	}
	return resp.Body, nil
}

// get waits for the limiter then issues a GET with optional extra headers
func (f *HTTPFetcher) get(ctx context.Context, ref InputRef, hdr http.Header) (*http.Response, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.Location, nil)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "storyarchive: bad url %s", ref)
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "storyarchive: get %s", ref)
	}
	return resp, nil
}

// statusError closes the body and maps the status to an error code.
// 429 and 5xx are retryable
func statusError(resp *http.Response, ref InputRef) error {
	code := perr.ErrorCodeUnknown
	switch {
	case resp.StatusCode == http.StatusNotFound:
		code = perr.ErrorCodeNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		code = perr.ErrorCodeUnavailable
	case resp.StatusCode >= 500:
		code = perr.ErrorCodeUnavailable
	}
	if cerr := resp.Body.Close(); cerr != nil {
		return perr.Newf(code, "storyarchive: unexpected status %d for %s (body close err: %v)", resp.StatusCode, ref, cerr)
	}
	return perr.Newf(code, "storyarchive: unexpected status %d for %s", resp.StatusCode, ref)
}

// RouteFetcher sends remote refs to Remote and everything else to Local
type RouteFetcher struct {
	Local  Fetcher
	Remote Fetcher
}

// Fetch implements Fetcher
func (r RouteFetcher) Fetch(ctx context.Context, ref InputRef) (io.ReadCloser, error) {
	if ref.Remote() {
		if r.Remote == nil {
			return nil, perr.InvalidArgf("storyarchive: no remote fetcher for %s", ref)
		}
		return r.Remote.Fetch(ctx, ref)
	}
	if r.Local == nil {
		return FileFetcher{}.Fetch(ctx, ref)
	}
	return r.Local.Fetch(ctx, ref)
}

// IsCacheHit reports whether rc was served from a local file.
// Fresh downloads are wrapped so they do not expose Name
func IsCacheHit(rc io.ReadCloser) bool {
	_, ok := rc.(interface{ Name() string })
	return ok
}
