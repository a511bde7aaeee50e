// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"net/http"
)

// tenantIDKey is the context key for the authenticated tenant ID.
type tenantIDKey struct{}

// actorIDKey is the context key for the authenticated actor ID.
type actorIDKey struct{}

// actorRoleKey is the context key for the authenticated actor role.
type actorRoleKey struct{}

// errorCodeKey is the context key for error code.
type errorCodeKey struct{}

// SetTenantID stores the tenant ID in the context.
// This should be called by authentication middleware after validating the token.
func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey{}, tenantID)
}

// GetTenantID retrieves the tenant ID from context. Returns empty string if not present.
func GetTenantID(ctx context.Context) string {
	if id, ok := ctx.Value(tenantIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SetActorID stores the actor ID in the context.
func SetActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

// GetActorID retrieves the actor ID from context. Returns empty string if not present.
func GetActorID(ctx context.Context) string {
	if id, ok := ctx.Value(actorIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SetActorRole stores the actor role in the context.
func SetActorRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, actorRoleKey{}, role)
}

// GetActorRole retrieves the actor role from context. Returns empty string if not present.
func GetActorRole(ctx context.Context) string {
	if role, ok := ctx.Value(actorRoleKey{}).(string); ok {
		return role
	}
	return ""
}

// SetErrorCode stores an error code in the context.
// This should be called by handlers when returning error responses.
func SetErrorCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, errorCodeKey{}, code)
}

// GetErrorCode retrieves the error code from context. Returns empty string if not present.
func GetErrorCode(ctx context.Context) string {
	if code, ok := ctx.Value(errorCodeKey{}).(string); ok {
		return code
	}
	return ""
}

// contextUpdater is implemented by response writer wrappers that can carry an
// updated request context back to outer middleware (used so the logging
// middleware sees error codes set by handlers after the context forked).
type contextUpdater interface {
	UpdateContext(ctx context.Context)
}

// UpdateResponseContext propagates an updated context to the response writer
// if the writer supports it. Handlers call this (via api.WriteError) so the
// logging middleware can pick up the error code.
func UpdateResponseContext(w http.ResponseWriter, ctx context.Context) {
	if u, ok := w.(contextUpdater); ok {
		u.UpdateContext(ctx)
	}
}
