// Package logger provides structured logging for the game server.
// Every clock transition, task and observer failure should be traceable through this.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured log field.
type Field = zap.Field

// Field constructors re-exported so callers need not import zap directly.
var (
	String   = zap.String
	Int      = zap.Int
	Bool     = zap.Bool
	Duration = zap.Duration
	Err      = zap.Error
	Any      = zap.Any
)

// Logger provides structured logging with context.
type Logger struct {
	z *zap.Logger
}

// NewLogger creates a production logger writing JSON to stderr.
func NewLogger() *Logger {
	z, err := zap.NewProduction()
	if err != nil {
		return NewNop()
	}
	return &Logger{z: z}
}

// NewDevelopment creates a human-readable logger for local runs.
func NewDevelopment() *Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	z, err := cfg.Build()
	if err != nil {
		return NewNop()
	}
	return &Logger{z: z}
}

// NewNop discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// Wrap adapts an existing zap logger.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

// Named returns a child logger scoped to a subsystem.
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{z: l.z.Named(name)}
}

// Info logs informational messages.
func (l *Logger) Info(msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.z.Info(msg, fields...)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.z.Warn(msg, fields...)
}

// Error logs error messages.
func (l *Logger) Error(msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.z.Error(msg, fields...)
}

// Event logs a specific game event.
func (l *Logger) Event(eventType string, actorID string, details string) {
	if l == nil {
		return
	}
	l.z.Info("game event",
		zap.String("event", eventType),
		zap.String("actor", actorID),
		zap.String("details", details),
	)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.z.Sync()
}
