// Package logger owns the process wide zerolog logger. Children carry a
// component name or the request, run and input ids found on a context
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"reddcrawl/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger is the logging type handed around the codebase
type Logger = zerolog.Logger

// Options shape the root logger
type Options struct {
	Level       string // zerolog level name, debug when unknown
	Format      string // "console" or "json"
	Service     string
	Writer      io.Writer // stdout when nil
	Caller      bool
	SampleEvery int
	Fields      map[string]string
}

// FromEnv reads LOG_LEVEL, LOG_FORMAT, LOG_SERVICE, LOG_CALLER and LOG_SAMPLE_EVERY
func FromEnv() Options {
	env := raw.New().Prefix("LOG_")
	return Options{
		Level:       env.Get("LEVEL", "debug"),
		Format:      strings.ToLower(env.Get("FORMAT", "console")),
		Service:     env.Get("SERVICE", ""),
		Caller:      env.GetBool("CALLER", false),
		SampleEvery: env.GetInt("SAMPLE_EVERY", 0),
	}
}

// New builds a logger from opt without touching the process root
func New(opt Options) Logger {
	var w io.Writer = os.Stdout
	if opt.Writer != nil {
		w = opt.Writer
	}
	if opt.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opt.Level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.DebugLevel
	}

	b := zerolog.New(w).Level(lvl).With().Timestamp()
	if bi, ok := debug.ReadBuildInfo(); ok {
		b = b.Str("go_version", bi.GoVersion)
	}
	if opt.Service != "" {
		b = b.Str("service", opt.Service)
	}
	for k, v := range opt.Fields {
		b = b.Str(k, v)
	}
	if opt.Caller {
		b = b.Caller()
	}
	l := b.Logger()
	if opt.SampleEvery > 1 {
		l = l.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
	}
	return l
}

var (
	initOnce sync.Once
	root     Logger
)

// Init sets the root logger. Only the first call, explicit or through Get, counts
func Init(opt Options) {
	initOnce.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano
		root = New(opt)
	})
}

// Get returns the root logger, configuring it from the environment on first use
func Get() *Logger {
	Init(FromEnv())
	return &root
}

type ctxKey string

const (
	keyRequestID ctxKey = "request_id"
	keyRunID     ctxKey = "run_id"
	keyInput     ctxKey = "input"
)

// WithRequest tags ctx with an http request id
func WithRequest(ctx context.Context, id string) context.Context { return tag(ctx, keyRequestID, id) }

// WithRun tags ctx with a processing run id
func WithRun(ctx context.Context, id string) context.Context { return tag(ctx, keyRunID, id) }

// WithInput tags ctx with the archive being read
func WithInput(ctx context.Context, input string) context.Context { return tag(ctx, keyInput, input) }

func tag(ctx context.Context, k ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

// C returns a child of the root logger carrying the ids tagged on ctx
func C(ctx context.Context) *Logger {
	l := From(*Get(), ctx)
	return &l
}

// From returns a child of base carrying the ids tagged on ctx
func From(base Logger, ctx context.Context) Logger {
	b := base.With()
	for _, k := range []ctxKey{keyRequestID, keyRunID, keyInput} {
		if v, ok := ctx.Value(k).(string); ok {
			b = b.Str(string(k), v)
		}
	}
	return b.Logger()
}

// Named returns a child of the root logger with a component field
func Named(component string) *Logger {
	l := Get().With().Str("component", component).Logger()
	return &l
}
