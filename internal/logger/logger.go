package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// presets maps a deployment environment to its base zap configuration.
// "test" is absent on purpose: it yields a no-op logger.
var presets = map[string]func() zap.Config{
	"prod": func() zap.Config {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg
	},
	"local":  zap.NewDevelopmentConfig,
	"dev":    zap.NewDevelopmentConfig,
	"docker": zap.NewDevelopmentConfig,
}

// NewLogger builds the process logger for env. An optional level (debug,
// info, warn, error) replaces the preset's default. Every entry carries
// service=creditgate.
func NewLogger(env string, level ...string) (*zap.Logger, error) {
	if env == "test" {
		return zap.NewNop(), nil
	}
	preset, ok := presets[env]
	if !ok {
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}
	cfg := preset()

	if len(level) > 0 && level[0] != "" {
		lvl, err := zapcore.ParseLevel(level[0])
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level[0], err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build %s logger: %w", env, err)
	}
	return l.With(zap.String("service", "creditgate")), nil
}
