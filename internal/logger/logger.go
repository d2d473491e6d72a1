// Package logger builds the zap logger shared by the server and the CLI.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/axellelanca/shortlinks/internal/config"
)

func buildLumberjackSyncer(cfg config.LogConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,  // megabytes before the file gets rotated
		MaxBackups: cfg.MaxBackups, // old log files to retain
		MaxAge:     cfg.MaxAgeDays, // days to retain old log files
		Compress:   false,
	}
}

// New returns a JSON logger writing to stdout, and to a rotated file when
// cfg.File is set. Every entry carries the service name.
func New(cfg config.LogConfig, service string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	syncer := zapcore.AddSync(os.Stdout)
	if cfg.File != "" {
		syncer = zapcore.NewMultiWriteSyncer(syncer, zapcore.AddSync(buildLumberjackSyncer(cfg)))
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), syncer, level)

	return zap.New(core, zap.AddCaller()).With(zap.String("service", service)), nil
}
