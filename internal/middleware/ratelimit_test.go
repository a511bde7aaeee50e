package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	valid := RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := (RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Minute}).Validate(); err == nil {
		t.Error("zero requests per window accepted")
	}
	if err := (RateLimitConfig{RequestsPerWindow: 10}).Validate(); err == nil {
		t.Error("zero window accepted")
	}
}

func TestInMemoryRateLimitStore_Allow(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _ := store.Allow(ctx, "k1", config)
		if !allowed {
			t.Errorf("request %d blocked, want allowed", i+1)
		}
	}

	allowed, retryAfter := store.Allow(ctx, "k1", config)
	if allowed {
		t.Error("4th request allowed, want blocked")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want 1..60", retryAfter)
	}

	// Other keys are unaffected.
	if allowed, _ := store.Allow(ctx, "k2", config); !allowed {
		t.Error("independent key blocked")
	}
}

func TestInMemoryRateLimitStore_Cleanup(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Millisecond}
	store.Allow(context.Background(), "k1", config)

	time.Sleep(5 * time.Millisecond)
	store.Cleanup()

	store.mu.Lock()
	remaining := len(store.buckets)
	store.mu.Unlock()
	if remaining != 0 {
		t.Errorf("buckets after cleanup = %d, want 0", remaining)
	}
}

func TestRateLimiter_Returns429(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}

	handler := RateLimiter(store, config, IPKeyFunc())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset header missing")
	}
}

func TestTenantKeyFunc(t *testing.T) {
	keyFunc := TenantKeyFunc()

	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := keyFunc(req); got != "ip:10.0.0.1" {
		t.Errorf("anonymous key = %q, want ip:10.0.0.1", got)
	}

	req = req.WithContext(SetTenantID(req.Context(), "t1"))
	if got := keyFunc(req); got != "tenant:t1" {
		t.Errorf("tenant key = %q, want tenant:t1", got)
	}
}

func TestIPKeyFunc_ForwardedFor(t *testing.T) {
	keyFunc := IPKeyFunc()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := keyFunc(req); got != "203.0.113.7" {
		t.Errorf("key = %q, want 203.0.113.7", got)
	}
}
