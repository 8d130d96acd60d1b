// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Level is a zap level name such as "debug" or "warn". Empty means info.
	Level string
	// Verbose forces the debug level.
	Verbose bool
	// File, when set, receives a copy of every entry and is rotated by size.
	File string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a JSON production logger and a function that flushes it and
// closes the log file.
func New(opts Options) (*zap.Logger, func(), error) {
	config := zap.NewProductionConfig()

	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	if opts.File == "" {
		logger, err := config.Build()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		return logger, func() { _ = logger.Sync() }, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    valueOr(opts.MaxSizeMB, 10),
		MaxBackups: valueOr(opts.MaxBackups, 5),
		MaxAge:     valueOr(opts.MaxAgeDays, 28),
		Compress:   true,
	}

	encoder := zapcore.NewJSONEncoder(config.EncoderConfig)
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), config.Level),
		zapcore.NewCore(encoder, zapcore.AddSync(rotator), config.Level),
	)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	cleanup := func() {
		_ = logger.Sync()
		_ = rotator.Close()
	}
	return logger, cleanup, nil
}

func valueOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
