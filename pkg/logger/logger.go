// Package logger builds the structured logger used by kvedit: a zap core
// exposed through the logr interface and carried in a context.Context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oakwood-commons/kvedit/pkg/settings"
)

type loggerContextKey struct{}

const (
	RootCommandKey = "root_command"
	SubCommandKey  = "sub_command"
	FileKey        = "file"
	CommitKey      = "commit"
	VersionKey     = "version"
	GoVersionKey   = "go_version"
	TimeStampKey   = "timestamp"
	MessageKey     = "message"
)

// Options control how a logger is built.
type Options struct {
	// Level is a zap level: -1 debug, 0 info, 1 warn. Lower logr V-levels
	// map onto negative zap levels, so -2 also enables V(2).
	Level int8
	// Writer receives log lines. Defaults to os.Stderr.
	Writer io.Writer
	// Console switches from JSON to the human-readable console encoder.
	Console bool
}

var (
	once            sync.Once
	globalZapLogger *zap.Logger
	globalLogr      *logr.Logger
	noop            = logr.Discard()
)

// New builds a logger from opts. The returned zap logger is what Sync
// flushes; callers that only log can ignore it.
func New(opts Options) (logr.Logger, *zap.Logger) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.TimeKey = TimeStampKey
	encoderCfg.MessageKey = MessageKey

	var enc zapcore.Encoder
	if opts.Console {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encoderCfg)
	}

	goVersion := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok {
		goVersion = info.GoVersion
	}
	core := zapcore.NewCore(
		enc,
		zapcore.Lock(zapcore.AddSync(w)),
		zap.NewAtomicLevelAt(zapcore.Level(opts.Level)),
	).With([]zapcore.Field{
		zap.String(CommitKey, settings.VersionInformation.Commit),
		zap.String(VersionKey, settings.VersionInformation.BuildVersion),
		zap.String(GoVersionKey, goVersion),
	})

	zl := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	)
	return zapr.NewLogger(zl), zl
}

// Get initializes the process-wide logger from opts on first use and
// returns it. Later calls ignore opts and return the same instance.
func Get(opts Options) *logr.Logger {
	once.Do(func() {
		lgr, zl := New(opts)
		globalZapLogger = zl
		globalLogr = &lgr
	})
	if globalLogr == nil {
		return &noop
	}
	return globalLogr
}

// WithLogger attaches lgr to ctx. The same pointer is not stored twice.
func WithLogger(ctx context.Context, lgr *logr.Logger) context.Context {
	if cur, ok := ctx.Value(loggerContextKey{}).(*logr.Logger); ok && cur == lgr {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey{}, lgr)
}

// FromContext returns the logger in ctx, then the global logger, then a
// no-op logger.
func FromContext(ctx context.Context) *logr.Logger {
	if lgr, ok := ctx.Value(loggerContextKey{}).(*logr.Logger); ok {
		return lgr
	}
	if globalLogr != nil {
		return globalLogr
	}
	return &noop
}

// WithValues returns a copy of lgr carrying keysAndValues.
func WithValues(lgr *logr.Logger, keysAndValues ...any) *logr.Logger {
	l := lgr.WithValues(keysAndValues...)
	return &l
}

// Sync flushes the global logger. Errors from syncing a terminal or pipe
// are expected and dropped.
func Sync() {
	if globalZapLogger == nil {
		return
	}
	if err := globalZapLogger.Sync(); err != nil && !isIgnorableSyncError(err) {
		fmt.Fprintf(os.Stderr, "WARNING: failed to sync logger: %v\n", err)
	}
}

func isIgnorableSyncError(err error) bool {
	if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.EIO) || errors.Is(err, syscall.EBADF) {
		return true
	}
	// Windows consoles report ERROR_INVALID_HANDLE as a wrapped PathError.
	return strings.Contains(err.Error(), "The handle is invalid")
}
