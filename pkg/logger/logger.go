// Package logger owns the process-wide zap logger. Until Init runs every call
// goes to a no-op logger.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultMaxAge = 7 * 24 * time.Hour

var global atomic.Pointer[zap.Logger]

func init() {
	global.Store(zap.NewNop())
}

// Options controls how the global logger is built.
type Options struct {
	Level string
	// File adds a daily rotated JSON log next to stdout when set.
	File   string
	MaxAge time.Duration
}

// Init replaces the global logger. Unknown levels fall back to info.
func Init(opts Options) error {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	sink := zapcore.Lock(os.Stdout)
	if opts.File != "" {
		file, err := rotatingFile(opts.File, opts.MaxAge)
		if err != nil {
			return err
		}
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(file))
	}

	encoding := zap.NewProductionEncoderConfig()
	encoding.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoding), sink, level)
	global.Store(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)))
	return nil
}

func rotatingFile(path string, maxAge time.Duration) (*rotatelogs.RotateLogs, error) {
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log directory: %w", err)
	}

	file, err := rotatelogs.New(
		path+".%Y%m%d",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(maxAge),
	)
	if err != nil {
		return nil, fmt.Errorf("logger: open rotating file: %w", err)
	}
	return file, nil
}

// Logger returns the current global logger.
func Logger() *zap.Logger {
	return global.Load()
}

// Sync flushes buffered entries.
func Sync() error {
	return Logger().Sync()
}

// WithModule returns a child of the global logger tagged with module.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}
