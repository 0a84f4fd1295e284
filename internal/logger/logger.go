// Package logger wraps a zap.Logger that starts as a no-op and is replaced by
// a production logger once Init is called.
package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger holds the process logger.
type Logger struct {
	Log *zap.Logger
}

// New returns a Logger backed by zap.NewNop until Init is called.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init builds a production zap logger at level ("debug", "info", "warn", "error").
// Level names are case-insensitive.
func (l *Logger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	l.Log = zl
	return nil
}
