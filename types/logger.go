package types

// Logger defines methods for structured logging.
//
// zap.SugaredLogger satisfies it directly; internal/logging adapts zerolog.
// Every method takes alternating key-value pairs as structured fields:
//
//	logger.Warn("skipping resource", "resource", "TestDB", "error", err)
type Logger interface {
	// Debug logs a message at DebugLevel.
	Debug(msg string, keysAndValues ...any)

	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)

	// Warn logs a message at WarnLevel.
	Warn(msg string, keysAndValues ...any)

	// Error logs a message at ErrorLevel.
	Error(msg string, keysAndValues ...any)

	// Fatal logs a message at FatalLevel and then calls os.Exit(1).
	Fatal(msg string, keysAndValues ...any)
}
