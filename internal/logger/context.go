package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type (
	ctxKey         struct{}
	annotationsKey struct{}
)

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request-scoped logger, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return FromContextOr(ctx, zap.NewNop())
}

// FromContextOr returns the request-scoped logger, or fallback.
func FromContextOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return fallback
}

// Annotations collects fields that inner layers attach to the request's
// canonical log line. Safe for concurrent use.
type Annotations struct {
	mu     sync.Mutex
	fields []zap.Field
}

// Fields returns a copy of the collected fields.
func (a *Annotations) Fields() []zap.Field {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]zap.Field(nil), a.fields...)
}

// ContextWithAnnotations installs an empty collector in the context.
func ContextWithAnnotations(ctx context.Context) (context.Context, *Annotations) {
	a := &Annotations{}
	return context.WithValue(ctx, annotationsKey{}, a), a
}

// Annotate appends fields to the request's canonical log line.
// It is a no-op when the context carries no collector.
func Annotate(ctx context.Context, fields ...zap.Field) {
	a, ok := ctx.Value(annotationsKey{}).(*Annotations)
	if !ok {
		return
	}
	a.mu.Lock()
	a.fields = append(a.fields, fields...)
	a.mu.Unlock()
}
