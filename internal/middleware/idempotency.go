package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lodgeline/lodgeline/internal/idempotency"
)

// IdempotencyKeyHeader is the HTTP header name for idempotency keys.
const IdempotencyKeyHeader = "Idempotency-Key"

type idempotencyKeyContextKey struct{}

// idempotencyResponseWriter captures the response for caching.
type idempotencyResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

func newIdempotencyResponseWriter(w http.ResponseWriter) *idempotencyResponseWriter {
	return &idempotencyResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           &bytes.Buffer{},
	}
}

func (w *idempotencyResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.body.Write(b)
	return n, err
}

// SetIdempotencyKey stores the idempotency key in the context.
func SetIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyContextKey{}, key)
}

// GetIdempotencyKey retrieves the idempotency key from context. Returns
// empty string if not present.
func GetIdempotencyKey(ctx context.Context) string {
	if key, ok := ctx.Value(idempotencyKeyContextKey{}).(string); ok {
		return key
	}
	return ""
}

// Idempotency enforces an Idempotency-Key header on POST requests under
// the given path prefixes. Keys are scoped to the authenticated tenant.
// A duplicate key replays the cached response; first successful (2xx)
// responses are cached for replay.
func Idempotency(repo idempotency.Repository, pathPrefixes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || !matchesPrefix(r.URL.Path, pathPrefixes) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				writeIdempotencyError(w, r, "missing_idempotency_key", "Idempotency-Key header is required for this request")
				return
			}
			if err := idempotency.ValidateKey(key); err != nil {
				code := "invalid_idempotency_key"
				message := "invalid Idempotency-Key format"
				if err == idempotency.ErrKeyTooLong {
					code = "idempotency_key_too_long"
					message = "Idempotency-Key exceeds maximum length of 64 characters"
				}
				writeIdempotencyError(w, r, code, message)
				return
			}

			tenantID := GetTenantID(r.Context())
			ctx := SetIdempotencyKey(r.Context(), key)
			r = r.WithContext(ctx)

			existing, err := repo.Get(tenantID, key)
			if err == nil {
				slog.InfoContext(ctx, "idempotency key found, returning cached response",
					"key", key,
					"status", existing.ResponseStatusCode,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(existing.ResponseStatusCode)
				io.WriteString(w, existing.ResponseBody)
				return
			}
			if err != idempotency.ErrKeyNotFound {
				// Unexpected store error. Continue without idempotency
				// rather than failing the request.
				slog.ErrorContext(ctx, "failed to check idempotency key", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			captureWriter := newIdempotencyResponseWriter(w)
			next.ServeHTTP(captureWriter, r)

			if captureWriter.statusCode >= 200 && captureWriter.statusCode < 300 {
				responseBody := captureWriter.body.String()
				record := &idempotency.Record{
					TenantID:           tenantID,
					Key:                key,
					Method:             r.Method,
					Route:              r.URL.Path,
					ResponseHash:       idempotency.ComputeResponseHash(responseBody),
					Status:             idempotency.StatusCompleted,
					ResponseBody:       responseBody,
					ResponseStatusCode: captureWriter.statusCode,
				}
				if err := repo.Store(record); err != nil {
					// Response already sent; just log.
					slog.ErrorContext(ctx, "failed to store idempotency key", "key", key, "error", err)
				}
			}
		})
	}
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func writeIdempotencyError(w http.ResponseWriter, r *http.Request, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	io.WriteString(w, `{"error":{"code":"`+code+`","message":"`+message+`"}}`)
}
