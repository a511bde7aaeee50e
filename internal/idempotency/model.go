// Package idempotency provides idempotency key storage for mutating
// booking and payment routes.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Key statuses. StatusProcessing is reserved in the database CHECK
// constraint for in-flight request handling; the Go code currently only
// writes StatusCompleted.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

var (
	// ErrKeyNotFound is returned when an idempotency key is not found.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when attempting to store a duplicate key.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned when the key is empty.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// MaxKeyLength is the maximum allowed length for an idempotency key.
const MaxKeyLength = 64

// Record is a stored idempotency key with its cached response. Keys are
// scoped per tenant so two tenants can use the same key value.
type Record struct {
	TenantID           string    `json:"tenant_id"`
	Key                string    `json:"key"`
	Method             string    `json:"method"`
	Route              string    `json:"route"`
	BookingID          *string   `json:"booking_id,omitempty"`
	ResponseHash       string    `json:"response_hash"`
	Status             string    `json:"status"`
	ResponseBody       string    `json:"response_body"`
	ResponseStatusCode int       `json:"response_status_code"`
	CreatedAt          time.Time `json:"created_at"`
}

// ValidateKey checks that an idempotency key is non-empty and within the
// length limit.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// ComputeResponseHash hashes a cached response body so integrity can be
// checked before replaying it.
func ComputeResponseHash(responseBody string) string {
	hash := sha256.Sum256([]byte(responseBody))
	return hex.EncodeToString(hash[:])
}

// Repository defines idempotency key persistence.
type Repository interface {
	// Get retrieves a tenant's key. Returns ErrKeyNotFound if absent.
	Get(tenantID, key string) (*Record, error)

	// Store saves a new key. Returns ErrKeyExists on duplicates.
	Store(record *Record) error

	// DeleteOlderThan removes keys older than the given duration and
	// returns how many were removed.
	DeleteOlderThan(duration time.Duration) (int64, error)
}
