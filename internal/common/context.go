package common

import "context"

// ContextKey is the type for context keys
type ContextKey string

// Context keys used across the application
const (
	RequestIDKey ContextKey = "request_id"
)

// WithRequestID returns a copy of ctx carrying the dispatch request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
