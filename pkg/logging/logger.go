// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
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

	// File, when set, receives a copy of every log line (opened in append mode).
	File string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup installs the global zerolog logger used by every vk-client package and
// returns it. Component loggers created with NewLogger afterwards inherit its output.
// The returned closer releases the log file and is a no-op when File is empty.
func Setup(cfg Config) (zerolog.Logger, io.Closer, error) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("open log file: %w", err)
		}
		// the file always gets JSON lines
		output = zerolog.MultiLevelWriter(output, f)
		closer = f
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

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

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, method, TTL)
//   - Request flow (method, offset, count)
//   - Pagination progress
//
// Info: Normal operation events
//   - Completed paginated calls
//   - Token obtained
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - VK API errors (error_code, error_msg)
//   - HTTP error statuses
//   - Cache errors (fallback to direct request)
//
// Error: Error conditions requiring attention
//   - Network failures
//   - Worker errors during parallel pagination
//   - Configuration errors
//
// Context Fields:
//   - component: Emitting package
//   - method: VK API method name
//   - offset, count: Page window
//   - error_code, error_msg: VK error envelope
//   - error_class: Error classification (client, server, api, network, decode)
//   - duration: Request or pagination duration
//   - ttl: Cache entry TTL
