package app

import (
	"log/slog"

	"github.com/FurmanovVitaliy/extension-auth/internal/config"
	"github.com/FurmanovVitaliy/logger"
)

// SetupLogger builds the process logger for the configured environment.
func SetupLogger(cfg *config.Config) *slog.Logger {
	switch cfg.Env {
	case "local":
		return logger.NewLogger(
			logger.WithLevel(cfg.Logger.Level), logger.IsJSON(false),
			logger.WithSource(cfg.Logger.Source), logger.IsPrettyOut(true),
		)
	default:
		return logger.NewLogger(
			logger.WithLevel(cfg.Logger.Level), logger.IsJSON(cfg.Logger.JSON),
			logger.WithSource(cfg.Logger.Source),
		)
	}
}
