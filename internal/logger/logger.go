// Package logger provides structured logging for the feedback tools.
package logger

import (
	"errors"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrInvalidLevel is returned by ParseLevel for unknown level names.
var ErrInvalidLevel = errors.New("log level must be one of: debug, info, warn, error")

// Logger wraps a zap sugared logger with key/value helpers.
type Logger struct {
	z     *zap.SugaredLogger
	level zap.AtomicLevel
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, ErrInvalidLevel
	}
}

// NewLogger creates a logger writing to stderr. Unknown levels mean info.
func NewLogger(level string) *Logger {
	return New(level, os.Stderr)
}

// New creates a logger writing console-formatted entries to w.
func New(level string, w io.Writer) *Logger {
	lvl, _ := ParseLevel(level)
	atom := zap.NewAtomicLevelAt(lvl)

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), atom)
	return &Logger{z: zap.New(core).Sugar(), level: atom}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop().Sugar(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

// Debug logs a debug level message with key/value pairs.
func (l *Logger) Debug(msg string, kv ...any) { l.z.Debugw(msg, kv...) }

// Info logs an info level message with key/value pairs.
func (l *Logger) Info(msg string, kv ...any) { l.z.Infow(msg, kv...) }

// Warn logs a warning level message with key/value pairs.
func (l *Logger) Warn(msg string, kv ...any) { l.z.Warnw(msg, kv...) }

// Error logs an error level message with key/value pairs.
func (l *Logger) Error(msg string, kv ...any) { l.z.Errorw(msg, kv...) }

// With creates a child logger carrying the given key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{z: l.z.With(kv...), level: l.level}
}

// Zap exposes the underlying logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger { return l.z.Desugar() }

// Sync flushes buffered entries.
func (l *Logger) Sync() error { return l.z.Sync() }
