package auth

import (
	"context"
	"strconv"
)

type userContextKey struct{}
type requestIDContextKey struct{}

// ContextWithUser attaches the identity id to the context for logging and auditing.
func ContextWithUser(ctx context.Context, id int64) context.Context {
	if id == 0 {
		return ctx
	}
	return context.WithValue(ctx, userContextKey{}, strconv.FormatInt(id, 10))
}

// UserIDFromContext returns the identity id previously attached.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(userContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ContextWithRequestID stores the outbound request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the request id if it was previously attached.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(requestIDContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
