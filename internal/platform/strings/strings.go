// Package strings holds small string helpers shared by modules and repos
package strings

import std "strings"

// Or returns in, or def when in has no elements
func Or[T any](in, def []T) []T {
	if len(in) == 0 {
		return def
	}
	return in
}

// Required panics with "<what> is required" when s is blank
func Required(s, what string) string {
	if std.TrimSpace(s) == "" {
		panic(what + " is required")
	}
	return s
}

// RoutePrefix turns " runs/" into "/runs". A prefix of only slashes panics
func RoutePrefix(s string) string {
	p := std.Trim(std.TrimSpace(s), "/ ")
	if p == "" {
		panic("root path is required")
	}
	return "/" + p
}

// NullIfBlank maps blank text to nil so the column stores NULL
func NullIfBlank(s string) any {
	if std.TrimSpace(s) == "" {
		return nil
	}
	return s
}
