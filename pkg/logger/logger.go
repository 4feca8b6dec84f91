// Package logger provides the shared application logger.
package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	instance *slog.Logger
	once     sync.Once
)

// Init configures the global logger. Safe to call multiple times; only the
// first call takes effect.
func Init(level slog.Level) {
	once.Do(func() {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		instance = slog.New(handler)
		slog.SetDefault(instance)
	})
}

// Get returns the global logger, initializing it with defaults if needed.
func Get() *slog.Logger {
	Init(slog.LevelInfo)
	return instance
}
