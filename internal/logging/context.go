package logging

import (
	"context"
	"log/slog"
)

type scopeKey struct{}

// scope is the request-scoped logging state. It is copied on every change so a
// derived context never mutates its parent.
type scope struct {
	logger    *slog.Logger
	requestID string
	traceID   string
	spanID    string
}

func scopeFrom(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func update(ctx context.Context, fn func(*scope)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s := scopeFrom(ctx)
	fn(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithLogger stores logger on the context. A nil logger leaves ctx unchanged.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return update(ctx, func(s *scope) { s.logger = logger })
}

// With enriches the context logger with attrs.
func With(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return WithLogger(ctx, FromContext(ctx).With(args...))
}

// FromContext returns the request-scoped logger or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l := scopeFrom(ctx).logger; l != nil {
		return l
	}
	return slog.Default()
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return update(ctx, func(s *scope) { s.requestID = requestID })
}

func RequestIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).requestID
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return update(ctx, func(s *scope) { s.traceID = traceID })
}

func TraceIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).traceID
}

func WithSpanID(ctx context.Context, spanID string) context.Context {
	if spanID == "" {
		return ctx
	}
	return update(ctx, func(s *scope) { s.spanID = spanID })
}

func SpanIDFromContext(ctx context.Context) string {
	return scopeFrom(ctx).spanID
}
