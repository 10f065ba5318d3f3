// Package logging builds the zap logger shared by every kmd component.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the process logger. Verbose switches to a human-readable
// console encoder at debug level; otherwise production JSON at info.
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		config := zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return config.Build()
	}
	config := zap.NewProductionConfig()
	config.DisableStacktrace = true
	return config.Build()
}

// NopIfNil substitutes a no-op logger so components can treat their logger
// as always safe to call.
func NopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
