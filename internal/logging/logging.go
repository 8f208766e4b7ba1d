// Package logging builds the structured loggers shared by every MKC
// component. Each component gets its own *zap.Logger tagged with a
// component field instead of a process-wide global, so callers can pass a
// scoped logger down through constructors the way codenerd's cmd/nerd
// wires a single zap.Logger at boot and threads it through.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Component names used as the "component" field on every log line emitted
// by MKC. These replace codenerd's per-category log files with a single
// structured stream, filterable on the same dimension.
const (
	ComponentMemory     = "memory"
	ComponentKnowledge   = "knowledge"
	ComponentConstraint  = "constraint"
	ComponentSync        = "sync"
	ComponentTenant      = "tenant"
	ComponentProvider    = "provider"
	ComponentEmbedding   = "embedding"
	ComponentOperation   = "operation"
)

// New builds a production zap.Logger, defaulting to info level, switching
// to debug when debug is true — mirrors cmd/nerd/main.go's
// zap.NewProductionConfig() + zap.NewAtomicLevelAt(zapcore.DebugLevel) setup.
func New(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	return cfg.Build()
}

// Component returns a child logger scoped to a single MKC component.
func Component(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return base.With(zap.String("component", component))
}

// Nop returns a logger that discards everything, for tests that don't
// care about log output.
func Nop() *zap.Logger {
	return zap.NewNop()
}
