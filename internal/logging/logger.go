// Package logging owns the process-wide zap logger.
package logging

import "go.uber.org/zap"

var global *zap.Logger

// Init builds the global logger. Production mode (JSON, info level) is used
// unless env is "development".
func Init(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	global = logger
	return logger, nil
}

// Get returns the global logger, falling back to a development logger if
// Init was never called (useful in tests).
func Get() *zap.Logger {
	if global == nil {
		global, _ = zap.NewDevelopment()
	}
	return global
}

// Sync flushes buffered log entries on shutdown.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}
