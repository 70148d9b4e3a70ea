// Package observability provides structured logging, metrics, and health checks
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogLevel is the minimum severity a Logger writes
type LogLevel = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

// ParseLevel reads LOG_LEVEL. Unknown or empty values mean info.
func ParseLevel(s string) LogLevel {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || level == zerolog.NoLevel {
		return LevelInfo
	}
	return level
}

// Logger is a component-scoped structured logger carrying correlation IDs
// from the request context into every entry.
type Logger struct {
	output    io.Writer
	minLevel  LogLevel
	component string
	zl        zerolog.Logger
}

// NewLogger creates a new structured logger writing JSON lines to stdout
func NewLogger(component string) *Logger {
	l := &Logger{
		output:    os.Stdout,
		minLevel:  LevelInfo,
		component: component,
	}
	l.rebuild()
	return l
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return NewLogger("nop").WithOutput(io.Discard)
}

// WithOutput sets the output writer for the logger
func (l *Logger) WithOutput(w io.Writer) *Logger {
	l.output = w
	l.rebuild()
	return l
}

// WithLevel sets the minimum log level
func (l *Logger) WithLevel(level LogLevel) *Logger {
	l.minLevel = level
	l.rebuild()
	return l
}

// Named returns a copy of the logger for another component sharing output and level
func (l *Logger) Named(component string) *Logger {
	child := &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
	}
	child.rebuild()
	return child
}

func (l *Logger) rebuild() {
	l.zl = zerolog.New(l.output).
		Level(l.minLevel).
		With().
		Timestamp().
		Str("component", l.component).
		Logger()
}

func (l *Logger) log(ctx context.Context, ev *zerolog.Event, message string, fields map[string]interface{}) {
	if ev == nil {
		return
	}
	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		ev = ev.Str("correlation_id", correlationID)
	}
	if userID := GetUserID(ctx); userID != "" {
		ev = ev.Str("user_id", userID)
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(message)
}

// Debug logs a debug message
func (l *Logger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	l.log(ctx, l.zl.Debug(), message, fields)
}

// Info logs an info message
func (l *Logger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.log(ctx, l.zl.Info(), message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.log(ctx, l.zl.Warn(), message, fields)
}

// Error logs an error message
func (l *Logger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	ev := l.zl.Error()
	if ev != nil && err != nil {
		ev = ev.Err(err)
	}
	l.log(ctx, ev, message, fields)
}

// WithOperation logs the start and end of an operation
func (l *Logger) WithOperation(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()
	if GetCorrelationID(ctx) == "" {
		ctx = WithCorrelationID(ctx, uuid.New().String())
	}

	l.Debug(ctx, fmt.Sprintf("Starting operation: %s", operation), map[string]interface{}{
		"operation": operation,
	})

	err := fn(ctx)
	fields := map[string]interface{}{
		"operation":   operation,
		"duration_ms": time.Since(start).Milliseconds(),
	}

	if err != nil {
		l.Error(ctx, fmt.Sprintf("Operation failed: %s", operation), err, fields)
		return err
	}

	l.Info(ctx, fmt.Sprintf("Operation completed: %s", operation), fields)
	return nil
}

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	userIDKey        contextKey = "user_id"
)

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// GetCorrelationID retrieves the correlation ID from the context
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUserID adds a user ID to the context
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// GetUserID retrieves the user ID from the context
func GetUserID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
