// Package logger provides the process-wide zerolog logger.
package logger

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
)

// Init initializes the default logger writing human-readable output to
// stderr. It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		defaultLogger = zerolog.New(out).With().Timestamp().Logger()
	})
}

// SetVerbose lowers the global level to debug.
func SetVerbose(verbose bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// Get returns the initialized default logger.
func Get() *zerolog.Logger {
	Init()
	return &defaultLogger
}

// Info logs an informational message using the default logger.
func Info(msg string) {
	Get().Info().Msg(msg)
}

// Infof logs a formatted informational message.
func Infof(format string, args ...any) {
	Get().Info().Msgf(format, args...)
}

// Warnf logs a formatted warning message.
func Warnf(format string, args ...any) {
	Get().Warn().Msgf(format, args...)
}

// Debugf logs a formatted debug message.
func Debugf(format string, args ...any) {
	Get().Debug().Msgf(format, args...)
}

// Errorf logs a formatted error message with the given error attached.
func Errorf(err error, format string, args ...any) {
	Get().Error().Err(err).Msgf(format, args...)
}
