// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// ConversationIDKey is the context key for the conversation being processed
	ConversationIDKey contextKey = "conversation_id"
	// TraceIDKey is the context key for trace ID
	TraceIDKey contextKey = "trace_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithConversation stores the conversation id on ctx so WithContext can pick it up.
func WithConversation(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, ConversationIDKey, conversationID)
}

// WithContext returns a logger with context values extracted.
// Supports request_id, conversation_id, and trace_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if conversationID, ok := ctx.Value(ConversationIDKey).(string); ok && conversationID != "" {
		newLogger = newLogger.WithConversationID(conversationID)
	}

	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("trace_id", traceID)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithConversationID returns a logger with conversation ID
func (l *Logger) WithConversationID(conversationID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("conversation_id", conversationID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// OracleFailure logs a classifier call that degraded to the fallback decision.
// kind is one of malformed, timeout or transport.
func (l *Logger) OracleFailure(conversationID, kind string, err error) {
	attrs := []any{
		slog.String("conversation_id", conversationID),
		slog.String("kind", kind),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.Warn("oracle_failure", attrs...)
}

// StageTransition logs the outcome of the progression validator for one turn.
func (l *Logger) StageTransition(conversationID string, fromOrder, proposedOrder, toOrder int, handoff bool) {
	l.Info("stage_transition",
		slog.String("conversation_id", conversationID),
		slog.Int("from_order", fromOrder),
		slog.Int("proposed_order", proposedOrder),
		slog.Int("to_order", toOrder),
		slog.Bool("handoff", handoff),
	)
}

// LockContention logs a turn that could not obtain the conversation lock in time.
func (l *Logger) LockContention(conversationID string, err error) {
	l.Info("lock_contention",
		slog.String("conversation_id", conversationID),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
