package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

// Init builds the global logger of a binary. Every entry carries the service
// and environment names.
func Init(level, env, service string) error {
	logger, err := New(level, env, service)
	if err != nil {
		return err
	}
	Log = logger
	return nil
}

// New builds a logger without installing it. Production logs are JSON and
// never sampled: each provider event of a call must stay traceable.
func New(level, env, service string) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.Sampling = nil
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	config.InitialFields = map[string]interface{}{
		"service": service,
		"env":     env,
	}

	return config.Build()
}

// ParseLevel maps a LOG_LEVEL value to a zap level, info by default.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
