package pkg

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// Subsystem component identifiers.
const (
	ComponentSPI   Component = "spi"
	ComponentUART  Component = "uart"
	ComponentRing  Component = "ring"
	ComponentMMIO  Component = "mmio"
	ComponentNVIC  Component = "nvic"
	ComponentSCB   Component = "scb"
	ComponentReset Component = "reset"
	ComponentBoard Component = "board"
	ComponentCLI   Component = "cli"
)

var (
	// DefaultLogger is the logger used by all HAL packages.
	DefaultLogger *slog.Logger

	// logLevel is the minimum level for components without an override.
	logLevel = new(slog.LevelVar)

	// levels overrides logLevel per component.
	levels map[Component]slog.Level

	// floor is the lowest level any component logs at. Handlers built by
	// this package filter on it; per-component filtering happens in logAt.
	floor = new(slog.LevelVar)

	// logMutex protects logger configuration.
	logMutex sync.RWMutex
)

func init() {
	logLevel.Set(slog.LevelWarn)
	floor.Set(slog.LevelWarn)
	DefaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: floor,
	}))
}

// SetLogLevel sets the minimum log level for all HAL logging.
func SetLogLevel(level slog.Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logLevel.Set(level)
	updateFloor()
}

// GetLogLevel returns the current minimum log level.
func GetLogLevel() slog.Level {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return logLevel.Level()
}

// SetComponentLevel overrides the minimum level for one component, so a
// single peripheral can be traced at debug while the rest stay quiet.
func SetComponentLevel(c Component, level slog.Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	if levels == nil {
		levels = make(map[Component]slog.Level)
	}
	levels[c] = level
	updateFloor()
}

// ResetComponentLevels removes every per-component override.
func ResetComponentLevels() {
	logMutex.Lock()
	defer logMutex.Unlock()
	levels = nil
	updateFloor()
}

// ComponentLevel returns the minimum level in effect for c.
func ComponentLevel(c Component) slog.Level {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return effective(c)
}

// LevelFloor returns the lowest level any component currently logs at.
// Handlers passed to [SetLogger] should use it as their level.
func LevelFloor() slog.Leveler {
	return floor
}

func effective(c Component) slog.Level {
	if l, ok := levels[c]; ok {
		return l
	}
	return logLevel.Level()
}

func updateFloor() {
	lowest := logLevel.Level()
	for _, l := range levels {
		if l < lowest {
			lowest = l
		}
	}
	floor.Set(lowest)
}

// SetLogger replaces the default logger with a custom logger.
func SetLogger(logger *slog.Logger) {
	logMutex.Lock()
	defer logMutex.Unlock()
	DefaultLogger = logger
}

// NewLogger creates a new text logger writing to the given writer.
func NewLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: floor}
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewJSONLogger creates a new JSON logger writing to the given writer.
func NewJSONLogger(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: floor}
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Enabled reports whether c would emit a message at level. Hot paths use it
// to skip building attributes.
func Enabled(c Component, level slog.Level) bool {
	logMutex.RLock()
	logger, lvl := DefaultLogger, effective(c)
	logMutex.RUnlock()
	return level >= lvl && logger.Enabled(context.Background(), level)
}

func logAt(level slog.Level, c Component, msg string, args []any) {
	logMutex.RLock()
	logger, lvl := DefaultLogger, effective(c)
	logMutex.RUnlock()
	if level < lvl {
		return
	}
	ctx := context.Background()
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.Log(ctx, level, msg, append([]any{"component", string(c)}, args...)...)
}

// LogDebug logs a debug message with the given component.
func LogDebug(component Component, msg string, args ...any) {
	logAt(slog.LevelDebug, component, msg, args)
}

// LogInfo logs an info message with the given component.
func LogInfo(component Component, msg string, args ...any) {
	logAt(slog.LevelInfo, component, msg, args)
}

// LogWarn logs a warning message with the given component.
func LogWarn(component Component, msg string, args ...any) {
	logAt(slog.LevelWarn, component, msg, args)
}

// LogError logs an error message with the given component.
func LogError(component Component, msg string, args ...any) {
	logAt(slog.LevelError, component, msg, args)
}
