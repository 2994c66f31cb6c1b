package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/webitel/pricing-sync-service/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ProvideLogger builds the process logger. The level lives in a LevelVar so
// a config file change can adjust verbosity without a restart.
func ProvideLogger(cfg *config.Config) (*slog.Logger, *slog.LevelVar, error) {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	lv := new(slog.LevelVar)
	lv.Set(level)

	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: 3,
			Compress:   true,
		})
	}

	opts := &slog.HandlerOptions{Level: lv}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("version", version),
	)
	slog.SetDefault(logger)

	cfg.OnLogLevelChange(func(l slog.Level) {
		lv.Set(l)
		logger.Info("log level changed", "level", l.String())
	})

	return logger, lv, nil
}
