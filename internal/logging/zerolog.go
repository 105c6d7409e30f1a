package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arloliu/helmsman/types"
)

// ZerologLogger implements types.Logger on top of a zerolog.Logger.
type ZerologLogger struct {
	logger zerolog.Logger
}

// Compile-time assertion that ZerologLogger implements Logger.
var _ types.Logger = (*ZerologLogger)(nil)

// NewZerolog wraps an existing zerolog.Logger.
//
// Parameters:
//   - logger: The zerolog logger to write through
//
// Returns:
//   - *ZerologLogger: Adapter implementing types.Logger
func NewZerolog(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

// ZerologOptions configures NewZerologWriter.
type ZerologOptions struct {
	// Level is one of "debug", "info", "warn", "error". Unknown values mean "info".
	Level string

	// JSON selects JSON output; otherwise a console writer is used.
	JSON bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// NewZerologWriter builds a timestamped zerolog logger from options.
//
// Example:
//
//	logger := logging.NewZerologWriter(logging.ZerologOptions{Level: "debug"})
//	logger.Info("controller starting", "cluster", "mycluster")
func NewZerologWriter(opts ZerologOptions) *ZerologLogger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).Level(ParseZerologLevel(opts.Level)).With().Timestamp().Logger()

	return &ZerologLogger{logger: logger}
}

// ParseZerologLevel maps a level name to a zerolog level, defaulting to info.
func ParseZerologLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *ZerologLogger) Debug(msg string, keysAndValues ...any) {
	withFields(l.logger.Debug(), keysAndValues).Msg(msg)
}

// Info logs an info-level message with optional key-value pairs.
func (l *ZerologLogger) Info(msg string, keysAndValues ...any) {
	withFields(l.logger.Info(), keysAndValues).Msg(msg)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *ZerologLogger) Warn(msg string, keysAndValues ...any) {
	withFields(l.logger.Warn(), keysAndValues).Msg(msg)
}

// Error logs an error-level message with optional key-value pairs.
func (l *ZerologLogger) Error(msg string, keysAndValues ...any) {
	withFields(l.logger.Error(), keysAndValues).Msg(msg)
}

// Fatal logs a fatal-level message and exits the process.
func (l *ZerologLogger) Fatal(msg string, keysAndValues ...any) {
	withFields(l.logger.Fatal(), keysAndValues).Msg(msg)
}

func withFields(ev *zerolog.Event, keysAndValues []any) *zerolog.Event {
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 >= len(keysAndValues) {
			ev = ev.Str(key, "<missing>")
			break
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, keysAndValues[i+1])
	}

	return ev
}
