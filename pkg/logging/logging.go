// Package logging provides the structured logger shared by the engine
// packages. Every record carries a "component" attribute so output from the
// scheduler, the address mapper and the board loader can be filtered.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

const (
	ComponentEngine  Component = "engine"
	ComponentChannel Component = "channel"
	ComponentMapper  Component = "mapper"
	ComponentMailbox Component = "mailbox"
	ComponentBoard   Component = "board"
	ComponentSim     Component = "sim"
)

// Format specifies the output format of the default logger.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var (
	defaultLogger *slog.Logger
	level         = new(slog.LevelVar)
	mu            sync.RWMutex
)

func init() {
	level.Set(slog.LevelWarn)
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// SetLevel sets the minimum level of the default logger.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Level returns the minimum level of the default logger.
func Level() slog.Level {
	return level.Level()
}

// SetLogger replaces the default logger.
func SetLogger(logger *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// SetOutput points the default logger at w using the given format and the
// current level.
func SetOutput(w io.Writer, format Format) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch format {
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	SetLogger(slog.New(h))
}

// Default returns the current default logger.
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// For returns the default logger tagged with component.
func For(c Component) *slog.Logger {
	return Default().With("component", string(c))
}

// Debug logs at debug level with the given component.
func Debug(c Component, msg string, args ...any) {
	Default().Debug(msg, append([]any{"component", string(c)}, args...)...)
}

// Info logs at info level with the given component.
func Info(c Component, msg string, args ...any) {
	Default().Info(msg, append([]any{"component", string(c)}, args...)...)
}

// Warn logs at warn level with the given component.
func Warn(c Component, msg string, args ...any) {
	Default().Warn(msg, append([]any{"component", string(c)}, args...)...)
}

// Error logs at error level with the given component.
func Error(c Component, msg string, args ...any) {
	Default().Error(msg, append([]any{"component", string(c)}, args...)...)
}
