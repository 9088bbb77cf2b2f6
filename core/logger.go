package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var loggerInstance Logger = *NewDevelopmentLogger() // default to development logger

// SetLogger sets the global logger instance
func SetLogger(logger Logger) {
	loggerInstance = logger
}

// GetLogger retrieves the global logger instance
func GetLogger() *Logger {
	return &loggerInstance
}

// LoggerConfig selects the level and output format of a Logger.
type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

// Logger wraps a zerolog.Logger behind the printf / key-value API used across
// the services and handlers.
type Logger struct {
	zl    zerolog.Logger
	attrs map[string]interface{}
}

// NewLogger creates a logger writing to out according to cfg.
func NewLogger(cfg LoggerConfig, out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var zl zerolog.Logger
	if strings.ToLower(cfg.Format) == "json" {
		zl = zerolog.New(out)
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}
	zl = zl.Level(level).With().Timestamp().Logger()

	return &Logger{
		zl:    zl,
		attrs: make(map[string]interface{}),
	}
}

// NewDevelopmentLogger creates a new development logger with pretty console output
func NewDevelopmentLogger() *Logger {
	return NewLogger(LoggerConfig{Level: "debug", Format: "console"}, os.Stdout)
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{zl: zerolog.Nop(), attrs: make(map[string]interface{})}
}

func (l *Logger) log(level zerolog.Level, msg string, args ...interface{}) {
	event := l.zl.WithLevel(level)
	if event == nil {
		return
	}
	if len(args) > 0 {
		// Detect slog-style key-value pairs: even number of args where
		// odd-positioned args (keys) are strings.
		if isKeyValuePairs(args) {
			fields := make(map[string]interface{}, len(args)/2)
			for i := 0; i < len(args)-1; i += 2 {
				key, _ := args[i].(string)
				fields[key] = normalizeValue(args[i+1])
			}
			event.Fields(fields).Msg(msg)
			return
		}
		msg = fmt.Sprintf(msg, args...)
	}
	event.Msg(msg)
}

// isKeyValuePairs returns true if args look like slog-style key-value pairs:
// even count and every key (even index) is a string.
func isKeyValuePairs(args []interface{}) bool {
	if len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

// errors are rendered through their message, zerolog would otherwise emit {} for
// error values nested inside a field map.
func normalizeValue(v interface{}) interface{} {
	if err, ok := v.(error); ok && err != nil {
		return err.Error()
	}
	return v
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(zerolog.DebugLevel, msg, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(zerolog.DebugLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(zerolog.InfoLevel, msg, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(zerolog.InfoLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(zerolog.WarnLevel, msg, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(zerolog.WarnLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(zerolog.ErrorLevel, msg, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(zerolog.ErrorLevel, fmt.Sprintf(format, args...))
}

// Fatal logs and terminates the process with exit code 1.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log(zerolog.FatalLevel, msg, args...)
	os.Exit(1)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.Fatal(fmt.Sprintf(format, args...))
}

func (l *Logger) Trace(msg string, args ...interface{}) {
	l.log(zerolog.TraceLevel, msg, args...)
}

func (l *Logger) Tracef(format string, args ...interface{}) {
	l.log(zerolog.TraceLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) With(attrs map[string]interface{}) *Logger {
	combinedAttrs := make(map[string]interface{}, len(l.attrs)+len(attrs))
	for k, v := range l.attrs {
		combinedAttrs[k] = v
	}
	normalized := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		combinedAttrs[k] = v
		normalized[k] = normalizeValue(v)
	}
	return &Logger{
		zl:    l.zl.With().Fields(normalized).Logger(),
		attrs: combinedAttrs,
	}
}

// sessionLoggerKey is the context key for storing a per-session logger.
type sessionLoggerKey struct{}

// ContextWithSessionLogger returns a new context carrying the session logger.
func ContextWithSessionLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, sessionLoggerKey{}, logger)
}

// SessionLoggerFromContext extracts the session logger from the context, or nil.
func SessionLoggerFromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(sessionLoggerKey{}).(*Logger); ok {
		return l
	}
	return nil
}

// LoggerFromContext returns the session logger carried by ctx, or fallback.
func LoggerFromContext(ctx context.Context, fallback *Logger) *Logger {
	if l := SessionLoggerFromContext(ctx); l != nil {
		return l
	}
	return fallback
}
