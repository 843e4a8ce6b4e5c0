package config

import (
	"context"
	"log/slog"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// managerKey is used to store the configuration manager in context.
type managerKey struct{}

// ManagerKey returns the context key used for storing the Manager.
func ManagerKey() interface{} {
	return managerKey{}
}

// GetManager retrieves the Manager from the command context. Without one a
// Manager holding the defaults is returned.
func GetManager(ctx context.Context) *Manager {
	if m, ok := ctx.Value(managerKey{}).(*Manager); ok {
		return m
	}
	return NewManager(Options{})
}
