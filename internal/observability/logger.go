// Package observability provides structured logging for the appraisal engine.
package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

const defaultService = "appraisal-engine"

// LogConfig holds logger configuration.
type LogConfig struct {
	Level       string
	Format      string // json or console
	Output      io.Writer
	ServiceName string
}

// Logger is a zerolog logger scoped by pipeline stage, document and mode.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger builds a logger from cfg. Unknown levels fall back to info.
func NewLogger(cfg LogConfig) *Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	service := cfg.ServiceName
	if service == "" {
		service = defaultService
	}

	return &Logger{zl: zerolog.New(out).Level(level).With().Timestamp().Str("service", service).Logger()}
}

// OrNop returns l, or a logger that discards everything when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return &Logger{zl: zerolog.Nop()}
	}
	return l
}

func (l *Logger) with(key, val string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, val).Logger()}
}

// WithComponent tags every event with the emitting pipeline stage.
func (l *Logger) WithComponent(name string) *Logger { return l.with("component", name) }

// WithDocument tags every event with a document ID.
func (l *Logger) WithDocument(id string) *Logger { return l.with("document_id", id) }

// WithMode tags every event with the run mode (train or predict).
func (l *Logger) WithMode(mode string) *Logger { return l.with("mode", mode) }

// WithContext adds the trace ID carried by ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id := TraceID(ctx); id != "" {
		return l.with("trace_id", id)
	}
	return l
}

// Debug starts a debug-level event.
func (l *Logger) Debug() *Event { return &Event{e: l.zl.Debug()} }

// Info starts an info-level event.
func (l *Logger) Info() *Event { return &Event{e: l.zl.Info()} }

// Warn starts a warn-level event.
func (l *Logger) Warn() *Event { return &Event{e: l.zl.Warn()} }

// Error starts an error-level event.
func (l *Logger) Error() *Event { return &Event{e: l.zl.Error()} }

// Event is a log line under construction. A nil inner event (level disabled)
// makes every method a no-op.
type Event struct {
	e *zerolog.Event
}

// Str adds a string field.
func (ev *Event) Str(key, val string) *Event {
	ev.e = ev.e.Str(key, val)
	return ev
}

// Int adds an int field.
func (ev *Event) Int(key string, val int) *Event {
	ev.e = ev.e.Int(key, val)
	return ev
}

// Floats64 adds a float slice field.
func (ev *Event) Floats64(key string, val []float64) *Event {
	ev.e = ev.e.Floats64(key, val)
	return ev
}

// Bool adds a bool field.
func (ev *Event) Bool(key string, val bool) *Event {
	ev.e = ev.e.Bool(key, val)
	return ev
}

// Dur adds a duration field in milliseconds.
func (ev *Event) Dur(key string, val time.Duration) *Event {
	ev.e = ev.e.Dur(key, val)
	return ev
}

// Stack makes the next Err call also log the error's stack trace, when the
// error carries one.
func (ev *Event) Stack() *Event {
	ev.e = ev.e.Stack()
	return ev
}

// Err adds err under the "error" key.
func (ev *Event) Err(err error) *Event {
	ev.e = ev.e.Err(err)
	return ev
}

// Msg writes the event.
func (ev *Event) Msg(msg string) {
	ev.e.Msg(msg)
}

type traceIDKey struct{}

// ContextWithTraceID returns a copy of ctx carrying traceID.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID returns the trace ID stored in ctx, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}
