// Package logging builds the process logger: a rotating JSON file plus a
// console core on stderr. Stdout is never written to; it carries the MCP
// protocol stream.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger construction settings.
type Config struct {
	FilePath   string // path to log file; "" disables the file core
	MaxSizeMB  int    // max size in MB before rotation
	MaxBackups int    // max number of old log files to keep
	MaxAgeDays int    // max days to keep old log files
	Level      string // minimum log level (debug, info, warn, error)
	Console    bool   // also log to stderr
}

// New creates the logger. The returned close function flushes and releases
// the file writer.
func New(cfg Config) (*zap.Logger, func(), error) {
	// Set defaults
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = 7
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	var cores []zapcore.Core
	var fileWriter *lumberjack.Logger

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, nil, err
		}
		fileWriter = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(fileWriter),
			level,
		))
	}

	if cfg.Console {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() {}, nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() {
		_ = logger.Sync()
		if fileWriter != nil {
			_ = fileWriter.Close()
		}
	}
	return logger, closeFn, nil
}
