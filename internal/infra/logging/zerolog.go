// Package logging adapts zerolog to the service's Logger interface. The
// development profile writes human-readable console output; everything else
// writes JSON lines.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Config selects the output format and threshold.
type Config struct {
	Env   string // "development" for console output, JSON otherwise
	Level string // trace, debug, info, warn, error (default info)
}

// FromEnv builds a Config from OPSLEDGER_ENV and OPSLEDGER_LOG_LEVEL.
func FromEnv() Config {
	return Config{
		Env:   os.Getenv("OPSLEDGER_ENV"),
		Level: os.Getenv("OPSLEDGER_LOG_LEVEL"),
	}
}

// Logger wraps zerolog behind the printf-style leveled surface the core
// service expects.
type Logger struct {
	zl zerolog.Logger
}

// New creates a structured logger writing to stdout.
func New(cfg Config) *Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a structured logger writing to w. Tests use this to
// capture output.
func NewWithWriter(cfg Config, w io.Writer) *Logger {
	if cfg.Env == "development" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	zl := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...any) { l.zl.Info().Msgf(format, args...) }

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, args ...any) { l.zl.Warn().Msgf(format, args...) }

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }

// Zerolog exposes the underlying logger for callers needing the direct API.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }
