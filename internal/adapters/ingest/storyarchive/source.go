package storyarchive

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	perr "reddcrawl/internal/platform/errors"
)

// Resolve expands input patterns into archive refs. Local patterns are globbed and sorted;
// http(s) URLs are kept as given. Duplicates are dropped, first occurrence wins
func Resolve(patterns ...string) ([]InputRef, error) {
	seen := map[string]struct{}{}
	var out []InputRef
	add := func(loc string) {
		if _, ok := seen[loc]; ok {
			return
		}
		seen[loc] = struct{}{}
		out = append(out, InputRef{Location: loc})
	}

	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if (InputRef{Location: p}).Remote() {
			add(p)
			continue
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "storyarchive: bad pattern %q", p)
		}
		if len(matches) == 0 {
			return nil, perr.NotFoundf("storyarchive: no input matches %q", p)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
				add(m)
			}
		}
	}
	if len(out) == 0 {
		return nil, perr.InvalidArgf("storyarchive: no inputs")
	}
	return out, nil
}
