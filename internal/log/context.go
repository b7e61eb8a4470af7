package log

import "context"

type ctxKey struct{}

// WithContext attaches l to ctx. Request-scoped fields go on l before it is
// attached, so everything downstream logs with them.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, or Nop.
func FromContext(ctx context.Context) Logger {
	return FromContextOr(ctx, nil)
}

// FromContextOr returns the request logger, or fallback when ctx has none.
func FromContextOr(ctx context.Context, fallback Logger) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return Nop()
}
