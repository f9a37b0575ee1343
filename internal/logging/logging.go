// Package logging builds the process slog.Logger on top of a zap core.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"

	"github.com/rickgao/krakenbook/internal/config"
)

// Logger is a slog.Logger backed by zap. Components take the embedded
// *slog.Logger; the owner calls Sync before exit.
type Logger struct {
	*slog.Logger
	zap   *zap.Logger
	level zap.AtomicLevel
}

// New creates a logger writing to stdout.
func New(cfg config.LoggingConfig) (*Logger, error) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) (*Logger, error) {
	levelName := cfg.Level
	if levelName == "" {
		levelName = config.DefaultLogLevel
	}
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "console":
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json", "":
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	atomic := zap.NewAtomicLevelAt(level)
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), atomic)

	return &Logger{
		Logger: slog.New(zapslog.NewHandler(core)),
		zap:    zap.New(core),
		level:  atomic,
	}, nil
}

// SetLevel changes the minimum level of every logger derived from l.
func (l *Logger) SetLevel(name string) error {
	if name == "" {
		name = config.DefaultLogLevel
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", name, err)
	}
	l.level.SetLevel(level)
	return nil
}

// Level returns the current minimum level.
func (l *Logger) Level() string {
	return l.level.Level().String()
}

// Zap returns the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
