// Package logging builds the service logger.
package logging

import (
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level  string
	Pretty bool
}

// NewZap builds a JSON production logger, or a console logger when Pretty is set
func NewZap(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Pretty {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// New returns an ectologger backed by zap
func New(cfg Config) (ectologger.Logger, func(), error) {
	z, err := NewZap(cfg)
	if err != nil {
		return nil, nil, err
	}
	return zapadapter.NewZapEctoLogger(z, nil), func() { _ = z.Sync() }, nil
}
