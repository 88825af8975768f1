// Package httpkit is what modules import to register endpoints: the router
// seam, return style handlers and the versioned API mount
package httpkit

import (
	"net/http"
	"strings"

	phttp "reddcrawl/internal/platform/net/http"
)

type (
	// Router is the platform router seam
	Router = phttp.Router

	// Handler is the platform handler shape
	Handler = phttp.Handler
)

// Call adapts fn to a Handler. A returned phttp.Response is written as is,
// anything else is wrapped in a 200 envelope
func Call(fn func(*http.Request) (any, error)) Handler {
	return phttp.Handle(func(r *http.Request) phttp.Response {
		out, err := fn(r)
		if err != nil {
			return phttp.Error(err)
		}
		if resp, ok := out.(phttp.Response); ok {
			return resp
		}
		return phttp.OK(out)
	})
}

// Get registers fn for GET and HEAD on path
func Get(r Router, path string, fn func(*http.Request) (any, error)) {
	h := Call(fn)
	r.Get(path, h)
	r.Head(path, h)
}

// Param returns a path parameter
func Param(r *http.Request, name string) string { return phttp.Param(r, name) }

// MountAPI mounts routes under /api/{version} behind mw
func MountAPI(r Router, version string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	r.Route("/api/"+strings.Trim(version, "/"), func(api Router) {
		api.Use(mw...)
		mount(api)
	})
}

// MountAPIV1 is MountAPI for v1
func MountAPIV1(r Router, mw []func(http.Handler) http.Handler, mount func(Router)) {
	MountAPI(r, "v1", mw, mount)
}
