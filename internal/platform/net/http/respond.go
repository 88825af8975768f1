// Package http is the HTTP transport: a chi backed router seam, the JSON
// envelope every endpoint answers with, and the server lifecycle
package http

import (
	"encoding/json"
	stdhttp "net/http"

	perr "reddcrawl/internal/platform/errors"
	"reddcrawl/internal/platform/logger"
	pnet "reddcrawl/internal/platform/net"
)

// Envelope is the body of every API response
type Envelope struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Field      string         `json:"field,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
}

// Response is what return style handlers produce. A Body that is an error
// decides the status itself
type Response struct {
	Status int
	Body   any
	Header stdhttp.Header
}

// OK returns a 200 response
func OK(data any) Response { return Response{Status: stdhttp.StatusOK, Body: data} }

// Error returns a response whose status follows the error code
func Error(err error) Response { return Response{Body: err} }

// Handle adapts a Response returning function to a Handler
func Handle(h func(r *stdhttp.Request) Response) Handler {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) { h(r).Write(w, r) }
}

// Write renders resp as an Envelope
func (resp Response) Write(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	env := Envelope{StatusCode: resp.Status, RequestID: pnet.RequestID(r.Context())}
	if err, ok := resp.Body.(error); ok && err != nil {
		wire := perr.WireFrom(err)
		env.StatusCode = perr.HTTPStatus(err)
		env.Code, env.Error, env.Field = wire.Code, wire.Message, wire.Field
		if env.StatusCode >= stdhttp.StatusInternalServerError {
			logger.C(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		}
	} else {
		env.Data = resp.Body
	}
	if env.StatusCode == 0 {
		env.StatusCode = stdhttp.StatusOK
	}
	env.Status = stdhttp.StatusText(env.StatusCode)
	WriteJSON(w, env.StatusCode, env)
}

// WriteJSON writes v with the given status
func WriteJSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
