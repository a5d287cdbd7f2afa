// Package obscontext carries request-scoped correlation values.
package obscontext

import "context"

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	environmentKey contextKey = "environment"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

func WithEnvironment(ctx context.Context, env string) context.Context {
	return context.WithValue(ctx, environmentKey, env)
}

func EnvironmentFromContext(ctx context.Context) string {
	if value, ok := ctx.Value(environmentKey).(string); ok {
		return value
	}
	return ""
}
