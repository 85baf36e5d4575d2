// Package logger is a thin context-aware wrapper around zerolog. Fields attached
// with WithFields travel on the context so every log line of one invocation
// carries the same request and transaction identifiers.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Init sets the global level ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func Init(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	mu.Lock()
	base = base.Level(lvl)
	mu.Unlock()
}

// SetOutput redirects log output, mainly for tests. A nil writer restores stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	mu.Lock()
	base = base.Output(w)
	mu.Unlock()
}

// WithFields returns a context whose logger carries the given key/value pairs.
func WithFields(ctx context.Context, keyVals ...interface{}) context.Context {
	l := from(ctx).With().Fields(keyVals).Logger()
	return context.WithValue(ctx, ctxKey{}, l)
}

func from(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
			return l
		}
	}
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Debugf(ctx context.Context, format string, args ...interface{}) {
	l := from(ctx)
	l.Debug().Msgf(format, args...)
}

func Info(ctx context.Context, msg string) {
	l := from(ctx)
	l.Info().Msg(msg)
}

func Infof(ctx context.Context, format string, args ...interface{}) {
	l := from(ctx)
	l.Info().Msgf(format, args...)
}

func Warn(ctx context.Context, msg string) {
	l := from(ctx)
	l.Warn().Msg(msg)
}

func Warnf(ctx context.Context, format string, args ...interface{}) {
	l := from(ctx)
	l.Warn().Msgf(format, args...)
}

func Error(ctx context.Context, err error, msg string) {
	l := from(ctx)
	l.Error().Err(err).Msg(msg)
}

func Errorf(ctx context.Context, err error, format string, args ...interface{}) {
	l := from(ctx)
	l.Error().Err(err).Msgf(format, args...)
}

// Fatal logs and exits. Only entry points call it.
func Fatal(ctx context.Context, err error, msg string) {
	l := from(ctx)
	l.Fatal().Err(err).Msg(msg)
}
