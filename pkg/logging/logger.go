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
	// LevelDebug logs per-page success and retry flow.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs run start and finish.
	LevelInfo LogLevel = "info"

	// LevelWarn logs per-page failures and retries.
	LevelWarn LogLevel = "warn"

	// LevelError logs fatal startup errors only.
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
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel validates a level name from configuration.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	l, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WorkerLogger derives a logger tagged with a worker index.
func WorkerLogger(base zerolog.Logger, worker int) zerolog.Logger {
	return base.With().Int("worker", worker).Logger()
}

// Log Level Guidelines:
//
// Debug:
//   - Page fetched and written (page, worker, duration)
//   - Retry scheduled and retry outcome (attempt, kind)
//   - Pages skipped because they are already on disk
//
// Info:
//   - Run start (total, on disk, outstanding, workers)
//   - Run finish (succeeded, failed, duration)
//   - Metrics server startup/shutdown
//
// Warn:
//   - Page failed terminally (page, worker, kind, error)
//   - Transient failure before the single retry
//   - Status publish failures
//
// Error:
//   - Corrupt artifact names in the output directory
//   - Configuration errors
//   - Output directory creation failures
//
// Context Fields:
//   - page: page index
//   - worker: worker index
//   - attempt: fetch call number for the page (1 or 2)
//   - kind: error kind (transport, deserialization, empty, artifact_exists)
//   - status_code: HTTP status code
//   - duration: request duration
