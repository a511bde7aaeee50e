// Package audit provides the tamper-evident audit ledger. Every sensitive
// operation is recorded as an entry on a per-tenant SHA-256 hash chain so
// that after-the-fact modification of any entry is detectable.
package audit

import (
	"time"
)

// Outcome constants for audit entries.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry represents a single audit event on a tenant's hash chain.
type Entry struct {
	ID       string
	TenantID string

	// Seq is the position of this entry in the tenant's chain, starting at 1.
	Seq int64

	ActorID    string
	EntityType string
	EntityID   string
	Action     string
	Outcome    string // "success" or "failure"
	CreatedAt  time.Time

	// Optional request metadata. Not part of the hash input, so IP
	// anonymization for data-retention compliance cannot break the chain.
	RequestID string
	IPAddress string
	UserAgent string

	// PrevHash is the Hash of the previous entry in the tenant's chain,
	// empty for the first entry.
	PrevHash string
	// Hash is computed over PrevHash, Seq, CreatedAt, and the identity
	// fields. See ComputeHash.
	Hash string
}

// Record represents the input for appending an audit entry.
type Record struct {
	TenantID   string
	ActorID    string
	EntityType string
	EntityID   string
	Action     string
	Outcome    string // "success" or "failure"; empty defaults to success

	// Optional request metadata
	RequestID string
	IPAddress string
	UserAgent string
}
