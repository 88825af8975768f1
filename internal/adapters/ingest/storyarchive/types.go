package storyarchive

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// InputRef names one archive: a local path or an http(s) URL
type InputRef struct {
	Location string
}

// String returns the location
func (r InputRef) String() string { return r.Location }

// Remote reports whether the input is fetched over http(s)
func (r InputRef) Remote() bool {
	return strings.HasPrefix(r.Location, "http://") || strings.HasPrefix(r.Location, "https://")
}

// Base returns the file name part of the location
func (r InputRef) Base() string {
	if r.Remote() {
		if u, err := url.Parse(r.Location); err == nil {
			return path.Base(u.Path)
		}
	}
	return filepath.Base(r.Location)
}

// Stats counts what a Reader saw
type Stats struct {
	Records   int   // decoded objects handed to the caller
	Malformed int   // undecodable lines
	Bytes     int64 // uncompressed bytes consumed, newlines included
}
