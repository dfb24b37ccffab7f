// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the structured logger used throughout the gateway.
var Logger *slog.Logger

type contextKey string

// Context keys picked up by the context-aware handler.
const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
	SessionIDKey contextKey = "session_id"
)

// ctxHandler is a slog.Handler that adds context values to the log record.
type ctxHandler struct {
	slog.Handler
}

// Handle adds context values to the record before passing it to the underlying handler.
func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if rid, ok := ctx.Value(RequestIDKey).(string); ok {
		r.AddAttrs(slog.String("request_id", rid))
	}
	if uid, ok := ctx.Value(UserIDKey).(uint); ok {
		r.AddAttrs(slog.Any("user_id", uid))
	}
	if tid, ok := ctx.Value(TraceIDKey).(string); ok {
		r.AddAttrs(slog.String("trace_id", tid))
	}
	if sid, ok := ctx.Value(SessionIDKey).(string); ok {
		r.AddAttrs(slog.String("session_id", sid))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

func init() {
	Logger = NewLogger(os.Stdout, os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
}

// NewLogger builds a JSON logger for production and a text logger otherwise.
func NewLogger(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if env == "production" || env == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(&ctxHandler{handler})
}

// Configure replaces the package logger once configuration is known.
func Configure(env, level string) {
	Logger = NewLogger(os.Stdout, env, level)
	slog.SetDefault(Logger)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithUserID returns a context carrying the session's user id for log records.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithSessionID returns a context carrying the gateway session id for log records.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// RemoteLogger provides structured logging for calls to the remote backend.
type RemoteLogger struct {
	service string
}

// NewRemoteLogger creates a RemoteLogger for the named upstream service.
func NewRemoteLogger(service string) *RemoteLogger {
	return &RemoteLogger{service: service}
}

// LogCall logs a completed upstream call.
func (l *RemoteLogger) LogCall(ctx context.Context, operation string, status int, fields map[string]interface{}) {
	attrs := []any{
		slog.String("service", l.service),
		slog.String("operation", operation),
		slog.Int("status", status),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	Logger.DebugContext(ctx, "remote call", attrs...)
}

// LogError logs a failed upstream call.
func (l *RemoteLogger) LogError(ctx context.Context, operation string, err error) {
	Logger.WarnContext(ctx, "remote call failed",
		slog.String("service", l.service),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// ScreenLogger provides structured logging for screen controllers.
type ScreenLogger struct {
	screen string
}

// NewScreenLogger creates a ScreenLogger for the named screen.
func NewScreenLogger(screen string) *ScreenLogger {
	return &ScreenLogger{screen: screen}
}

// LogAction logs a user action handled by the screen.
func (l *ScreenLogger) LogAction(ctx context.Context, action string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("screen", l.screen),
		slog.String("action", action),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	Logger.InfoContext(ctx, "screen action", attrs...)
}

// LogError logs an action that failed and was turned into a user notice.
func (l *ScreenLogger) LogError(ctx context.Context, action string, err error) {
	Logger.ErrorContext(ctx, "screen action failed",
		slog.String("screen", l.screen),
		slog.String("action", action),
		slog.String("error", err.Error()),
	)
}
