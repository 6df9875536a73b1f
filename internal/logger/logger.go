package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pageza/nutrilog/backend/config"
)

// New builds the application logger for the given environment.
// Production logs JSON at info level, everything else logs colored console output at debug level.
func New(env config.Environment) (*zap.Logger, error) {
	if env.IsProduction() {
		return zap.NewProduction()
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == config.Test || env == config.CI {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build(zap.Fields(zap.String("env", string(env))))
}
