// Package log wraps zerolog with the field conventions used throughout the
// connection and streaming plane (component, host_id, stream_key, etc).
// Unlike a typical CLI tool a control plane runs many concurrent per-host
// and per-stream goroutines, so loggers are constructed per-component
// rather than pulled from a single global.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is a logging verbosity.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls how New builds a root logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// New builds a root logger from cfg. Components derive scoped children from
// it with With* rather than reaching for a package-level logger, so a
// process embedding this plane (or a test) can inject its own sink.
func New(cfg Config) zerolog.Logger {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagged with the owning component.
func WithComponent(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// WithHost returns a child logger tagged with the host a call concerns.
func WithHost(base zerolog.Logger, hostID string) zerolog.Logger {
	return base.With().Str("host_id", hostID).Logger()
}

// WithStream returns a child logger tagged with a multiplexed stream key.
func WithStream(base zerolog.Logger, sourceType, resourceID string) zerolog.Logger {
	return base.With().Str("source_type", sourceType).Str("resource_id", resourceID).Logger()
}
