package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured key/value attached to a log entry
type Field = zap.Field

// Config controls level, encoding and destination of log output
type Config struct {
	Level  string // debug, info, warn, error
	Format string // "json" or "text"
	Output io.Writer
}

// Logger provides structured logging capabilities
type Logger struct {
	zl    *zap.Logger
	level zap.AtomicLevel
}

// New creates a logger writing to cfg.Output (stdout when nil)
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	atom := zap.NewAtomicLevelAt(level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "", "text", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), atom)
	return &Logger{
		zl:    zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		level: atom,
	}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{zl: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// ParseLevel maps a level name to a zap level; empty means info
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", name)
	}
}

// SetLevel changes the minimum level at runtime
func (l *Logger) SetLevel(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	l.level.SetLevel(level)
	return nil
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	l.zl.Debug(msg, fields...)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) {
	l.zl.Info(msg, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) {
	l.zl.Warn(msg, fields...)
}

// Error logs an error message
func (l *Logger) Error(msg string, err error, fields ...Field) {
	if err != nil {
		fields = append(fields, Error(err))
	}
	l.zl.Error(msg, fields...)
}

// WithFields returns a child logger that always carries fields
func (l *Logger) WithFields(fields ...Field) *Logger {
	return &Logger{zl: l.zl.With(fields...), level: l.level}
}

// Sync flushes buffered entries
func (l *Logger) Sync() {
	_ = l.zl.Sync()
}

// String adds a string field
func String(key, value string) Field {
	return zap.String(key, value)
}

// Int adds an integer field
func Int(key string, value int) Field {
	return zap.Int(key, value)
}

// Float adds a float field
func Float(key string, value float64) Field {
	return zap.Float64(key, value)
}

// Duration adds a duration field
func Duration(key string, value time.Duration) Field {
	return zap.Duration(key, value)
}

// Any adds a field of any type, encoded reflectively
func Any(key string, value any) Field {
	return zap.Any(key, value)
}

// Error adds err under the "error" key
func Error(err error) Field {
	return zap.Error(err)
}

// Component tags entries with the emitting component
func Component(component string) Field {
	return zap.String("component", component)
}
