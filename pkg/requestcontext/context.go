// Package requestcontext provides transport-independent context accessors for
// request-scoped values.
//
// Middleware sets values, services read them. Keeping this package free of
// net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	caller := requestcontext.CallerKey(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithCallerKey(ctx, "oracle-a")
package requestcontext

import (
	"context"
	"time"

	id "trustgrid/pkg/domain"
)

type (
	callerKeyKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// CallerKey retrieves the authenticated caller key from the context.
// Returns the zero Key if not set.
func CallerKey(ctx context.Context) id.Key {
	if k, ok := ctx.Value(callerKeyKey{}).(id.Key); ok {
		return k
	}
	return ""
}

// WithCallerKey injects a caller key into the context.
func WithCallerKey(ctx context.Context, key id.Key) context.Context {
	return context.WithValue(ctx, callerKeyKey{}, key)
}

// RequestID retrieves the correlation ID from the context.
func RequestID(ctx context.Context) string {
	if r, ok := ctx.Value(requestIDKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now returns the request time from the context, falling back to the wall
// clock. Every mutation in one operation reads the same instant, and tests
// pin time without a clock interface.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed request time into the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
