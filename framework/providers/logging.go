package providers

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/km-arc/go-tenancy/framework/config"
)

// NewLogger builds a zap logger from cfg and exposes it as a logr.Logger.
// Verbosity n enables logr's V(n) lines on top of the configured level.
func NewLogger(cfg config.LogConfig) (logr.Logger, *zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return logr.Discard(), nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.Verbosity > 0 {
		level = min(level, zapcore.Level(-cfg.Verbosity))
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	z, err := zc.Build()
	if err != nil {
		return logr.Discard(), nil, fmt.Errorf("building logger: %w", err)
	}
	return zapr.NewLogger(z), z, nil
}
