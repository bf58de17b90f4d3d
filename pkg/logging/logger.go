// Package logging configures zerolog for the cache client, the CLI and the
// reference cache server.
package logging

import (
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

	// LevelDisabled turns logging off entirely. The CLI uses it by default so
	// that command output on stdout stays machine readable.
	LevelDisabled LogLevel = "disabled"
)

// Component names used as the "component" field.
const (
	ComponentClient = "cache-client"
	ComponentServer = "cache-server"
	ComponentCLI    = "zato-cache"
	ComponentODB    = "odb"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel `yaml:"level"`

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool `yaml:"pretty"`

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer `yaml:"-"`
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// FromEnv returns DefaultConfig overridden by LOG_LEVEL and LOG_PRETTY.
func FromEnv() Config {
	cfg := DefaultConfig()
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Level = LogLevel(lvl)
	}
	switch strings.ToLower(os.Getenv("LOG_PRETTY")) {
	case "1", "true", "yes":
		cfg.Pretty = true
	}
	return cfg
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level. Unknown values fall back to info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
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
// Debug: request flow (verb, url, key, status), coercion results,
// ODB lookups, store hits and misses.
//
// Info: server startup/shutdown, client construction from server config.
//
// Warn: transport failures, retry attempts, unparseable responses,
// store errors that are returned to the caller.
//
// Error: fatal server conditions (listener failure, backend unavailable).
//
// Context fields:
//   - command: get, set or delete
//   - key: cache key as given by the caller
//   - status: HTTP status code
//   - error_class: client, server, network or parse
//   - backend: redis or bolt
