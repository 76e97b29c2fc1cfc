// Package logger provides the process-wide zap logger.
package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once     sync.Once
	instance *zap.Logger
)

// Init builds the singleton logger. Idempotent: only the first call has any
// effect. Env "production" selects the JSON encoder, anything else the
// human-readable development encoder.
func Init(env, level string) {
	once.Do(func() {
		instance = build(env, level)
	})
}

// L returns the singleton logger, initializing a development default if Init
// was never called.
func L() *zap.Logger {
	if instance == nil {
		Init("dev", "info")
	}
	return instance
}

// Named returns a logger tagged with a component name.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

func build(env, level string) *zap.Logger {
	var zcfg zap.Config
	if strings.EqualFold(strings.TrimSpace(env), "production") {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	l, err := zcfg.Build(zap.AddCaller())
	if err != nil {
		l, _ = zap.NewProduction()
	}
	return l
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
