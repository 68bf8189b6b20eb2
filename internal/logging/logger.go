// Package logging builds the zap loggers used across pharoreviewd.
// Each subsystem gets a named child logger so log lines can be filtered
// by component.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Component names used for child loggers.
const (
	ComponentServer   = "server"
	ComponentService  = "service"
	ComponentPipeline = "pipeline"
	ComponentGateway  = "gateway"
	ComponentMCP      = "mcp"
	ComponentLLM      = "llm"
)

// New creates the root logger. Debug mode switches to the development
// config with debug level enabled.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Named returns a child logger for the given component.
func Named(logger *zap.Logger, component string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(component)
}

// Nop returns a no-op logger for tests and optional dependencies.
func Nop() *zap.Logger {
	return zap.NewNop()
}
