// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application are defined here so that
// producers and consumers agree on the key and the stored type.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserContextKey contains the resolved authz.UserContext.
	// Set by: middleware.AuthMiddleware / middleware.PageMiddleware
	// Type: authz.UserContext
	UserContextKey Key = "user_context"

	// RequestIDKey contains the request ID (UUID string).
	// Set by: httputil.RequestIDMiddleware
	// Type: string
	RequestIDKey Key = "request_id"

	// AdminSessionKey contains the validated admin session.
	// Set by: middleware.AuthMiddleware when an admin cookie matched
	// Type: *session.Session
	AdminSessionKey Key = "admin_session"
)

// WithUserContext adds the resolved user context to the context
func WithUserContext(ctx context.Context, uc interface{}) context.Context {
	return context.WithValue(ctx, UserContextKey, uc)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithAdminSession adds the validated admin session to the context
func WithAdminSession(ctx context.Context, sess interface{}) context.Context {
	return context.WithValue(ctx, AdminSessionKey, sess)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
