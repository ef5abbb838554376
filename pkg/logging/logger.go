// Package logging provides structured logging configuration using zerolog.
//
// Components obtain child loggers through NewLogger so that every entry
// carries a "component" field.
package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel validates a level name from configuration.
// An empty name selects LevelInfo.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", name)
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRequest returns a child logger carrying the request method and path.
func WithRequest(logger zerolog.Logger, r *http.Request) zerolog.Logger {
	return logger.With().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Logger()
}

// Log Level Guidelines:
//
// Debug: Per-response detail
//   - ETag decisions (computed, matched, skipped)
//   - Store lookups (key, content type, size)
//
// Info: Normal operation events
//   - Server startup/shutdown
//   - Configuration loaded (algorithm, route overrides)
//
// Warn: Conditions that don't prevent operation
//   - Route overrides that match no registered route
//
// Error: Conditions requiring attention
//   - Handler errors answered with a 5xx (store unavailable)
//   - Payloads that cannot be serialized for fingerprinting
//   - Failed writes to the client
//   - Backend unavailability
//
// Context Fields:
//   - component: emitting package (etag, middleware, store, server)
//   - method: request method
//   - path: request path
//   - route: matched route pattern
//   - status_code: HTTP status code
//   - etag: computed ETag token
//   - reason: eligibility rule that skipped a response
