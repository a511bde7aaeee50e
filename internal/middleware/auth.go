package middleware

import (
	"net/http"
	"strings"

	"github.com/lodgeline/lodgeline/internal/auth"
)

// Auth validates the Bearer token on incoming requests and stores the
// authenticated tenant, actor, and role in the request context. Refresh
// tokens are rejected; only access tokens grant API access.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				UpdateResponseContext(w, SetErrorCode(r.Context(), "unauthorized"))
				writeAuthError(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				UpdateResponseContext(w, SetErrorCode(r.Context(), "unauthorized"))
				writeAuthError(w, "invalid authorization header")
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				UpdateResponseContext(w, SetErrorCode(r.Context(), "unauthorized"))
				if err == auth.ErrExpiredToken {
					writeAuthError(w, "token expired")
				} else {
					writeAuthError(w, "invalid token")
				}
				return
			}

			if claims.Type != auth.TokenTypeAccess {
				UpdateResponseContext(w, SetErrorCode(r.Context(), "unauthorized"))
				writeAuthError(w, "access token required")
				return
			}

			ctx := SetTenantID(r.Context(), claims.TenantID)
			ctx = SetActorID(ctx, claims.Subject)
			ctx = SetActorRole(ctx, claims.Role)
			UpdateResponseContext(w, ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a handler to callers holding one of the given roles.
// It must run after Auth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetActorRole(r.Context())
			if !allowed[role] {
				UpdateResponseContext(w, SetErrorCode(r.Context(), "forbidden"))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":{"code":"forbidden","message":"insufficient role"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":"unauthorized","message":"` + message + `"}}`))
}
