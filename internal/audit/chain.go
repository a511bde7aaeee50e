package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// HashPrefix is prepended to every chain hash so stored values are
// self-describing about the algorithm used.
const HashPrefix = "sha256:"

// ComputeHash calculates the chain hash for an audit entry. The hash depends
// on the previous entry's hash, so modifying any entry invalidates every
// entry after it in the tenant's chain.
//
// Hash input:
//
//	prev_hash | seq | created_at | tenant | actor | entity_type | entity_id | action | outcome
//
// Request metadata (request ID, IP, user agent) is deliberately excluded:
// the anonymization job rewrites IPs after the retention window and must not
// break chain verification.
// appendTimestamp returns the creation time for a new entry, truncated
// to microseconds. TIMESTAMPTZ keeps microsecond precision, so hashing a
// nanosecond timestamp would break verification after a round trip
// through Postgres.
func appendTimestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func ComputeHash(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s|%s|%s|%s",
		e.PrevHash, e.Seq, e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.TenantID, e.ActorID,
		e.EntityType, e.EntityID, e.Action, e.Outcome)
	return HashPrefix + hex.EncodeToString(h.Sum(nil))
}

// VerifyEntry reports whether an entry's stored hash matches the hash
// recomputed from its contents.
func VerifyEntry(e *Entry) bool {
	return e.Hash == ComputeHash(e)
}

// VerifyChain walks a tenant's entries in sequence order and verifies every
// link. Entries must be ordered by Seq ascending. It returns the sequence
// number of the first broken link, or 0 if the chain is intact.
func VerifyChain(entries []*Entry) int64 {
	prevHash := ""
	var prevSeq int64
	for _, e := range entries {
		if e.Seq != prevSeq+1 {
			return e.Seq
		}
		if e.PrevHash != prevHash {
			return e.Seq
		}
		if !VerifyEntry(e) {
			return e.Seq
		}
		prevHash = e.Hash
		prevSeq = e.Seq
	}
	return 0
}
