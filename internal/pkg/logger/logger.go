// Package logger holds the labtrack process logger.
//
// Init builds a zap logger whose level lives in an AtomicLevel, so
// GET/PUT /log/level can inspect and change it while the server runs.
// Request handlers log through FromContext to pick up the request ID.
package logger

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var (
	level = zap.NewAtomicLevel()
	once  sync.Once

	// root is used directly by callers; pkg skips one frame for the
	// package-level helpers below.
	root = zap.NewNop()
	pkg  = zap.NewNop()
)

// Init builds the process logger. format is "json" or "console"; anything
// else falls back to json. Only the first successful call takes effect.
func Init(lvl, format string) error {
	var initErr error
	once.Do(func() {
		if err := level.UnmarshalText([]byte(lvl)); err != nil {
			initErr = fmt.Errorf("parse log level %q: %w", lvl, err)
			return
		}

		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if format == "console" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.Level = level

		l, err := cfg.Build()
		if err != nil {
			initErr = fmt.Errorf("build logger: %w", err)
			return
		}
		root = l.Named("labtrack")
		pkg = root.WithOptions(zap.AddCallerSkip(1))
	})
	if initErr != nil {
		once = sync.Once{}
	}
	return initErr
}

// L returns the process logger; a no-op logger before Init.
func L() *zap.Logger { return root }

// SetLevel changes the minimum enabled level.
func SetLevel(lvl string) error {
	return level.UnmarshalText([]byte(lvl))
}

// Level reports the minimum enabled level.
func Level() zapcore.Level { return level.Level() }

// LevelHandler is zap's level endpoint: GET returns {"level":"info"}, PUT
// with the same body changes it.
func LevelHandler() http.Handler { return level }

// NewContext returns ctx carrying a child of the process logger with fields.
func NewContext(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, ctxKey{}, FromContext(ctx).With(fields...))
}

// FromContext returns the logger stored by NewContext, or L().
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return root
}

func Debug(msg string, fields ...zap.Field) { pkg.Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { pkg.Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { pkg.Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { pkg.Error(msg, fields...) }

// Sync flushes buffered entries. Call it before the process exits.
func Sync() error {
	return root.Sync()
}
