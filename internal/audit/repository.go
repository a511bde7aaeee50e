package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for audit ledger operations.
type Repository interface {
	// Append records an audit event on the tenant's hash chain.
	// Returns the created entry with Seq, PrevHash, and Hash populated.
	Append(rec Record) (*Entry, error)

	// LastHash returns the hash of the newest entry in the tenant's chain.
	// Returns empty string for a tenant with no entries.
	LastHash(tenantID string) (string, error)

	// VerifyChain recomputes every link in the tenant's chain.
	// Returns the sequence number of the first broken link, or 0 if intact.
	VerifyChain(tenantID string) (int64, error)

	// QueryByEntity retrieves entries for a specific entity within a tenant,
	// newest first. Limit 0 means no limit.
	QueryByEntity(tenantID, entityType, entityID string, limit int) ([]*Entry, error)

	// QueryByActor retrieves entries for a specific actor within a tenant,
	// newest first. Limit 0 means no limit.
	QueryByActor(tenantID, actorID string, limit int) ([]*Entry, error)

	// QueryByTenant retrieves all entries for a tenant in chain order
	// (oldest first). Limit 0 means no limit.
	QueryByTenant(tenantID string, limit int) ([]*Entry, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu sync.RWMutex
	// chains holds entries per tenant in append order.
	chains map[string][]*Entry
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		chains: make(map[string][]*Entry),
	}
}

// Append records an audit event on the tenant's hash chain.
func (r *InMemoryRepository) Append(rec Record) (*Entry, error) {
	if rec.TenantID == "" {
		return nil, ErrInvalidTenantID
	}
	if err := validateRecord(rec.EntityType, rec.EntityID, rec.Action); err != nil {
		return nil, err
	}

	outcome := rec.Outcome
	if outcome == "" {
		outcome = OutcomeSuccess
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	chain := r.chains[rec.TenantID]
	prevHash := ""
	if n := len(chain); n > 0 {
		prevHash = chain[n-1].Hash
	}

	entry := &Entry{
		ID:         uuid.New().String(),
		TenantID:   rec.TenantID,
		Seq:        int64(len(chain)) + 1,
		ActorID:    rec.ActorID,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Action:     rec.Action,
		Outcome:    outcome,
		CreatedAt:  appendTimestamp(),
		RequestID:  rec.RequestID,
		IPAddress:  rec.IPAddress,
		UserAgent:  rec.UserAgent,
		PrevHash:   prevHash,
	}
	entry.Hash = ComputeHash(entry)

	r.chains[rec.TenantID] = append(chain, entry)

	// Return a copy to prevent external modification
	copied := *entry
	return &copied, nil
}

// LastHash returns the hash of the newest entry in the tenant's chain.
func (r *InMemoryRepository) LastHash(tenantID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := r.chains[tenantID]
	if len(chain) == 0 {
		return "", nil
	}
	return chain[len(chain)-1].Hash, nil
}

// VerifyChain recomputes every link in the tenant's chain.
func (r *InMemoryRepository) VerifyChain(tenantID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return VerifyChain(r.chains[tenantID]), nil
}

// QueryByEntity retrieves entries for a specific entity, newest first.
func (r *InMemoryRepository) QueryByEntity(tenantID, entityType, entityID string, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Entry
	chain := r.chains[tenantID]
	for i := len(chain) - 1; i >= 0; i-- {
		e := chain[i]
		if e.EntityType == entityType && e.EntityID == entityID {
			copied := *e
			results = append(results, &copied)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// QueryByActor retrieves entries for a specific actor, newest first.
func (r *InMemoryRepository) QueryByActor(tenantID, actorID string, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Entry
	chain := r.chains[tenantID]
	for i := len(chain) - 1; i >= 0; i-- {
		e := chain[i]
		if e.ActorID == actorID {
			copied := *e
			results = append(results, &copied)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// QueryByTenant retrieves all entries for a tenant in chain order.
func (r *InMemoryRepository) QueryByTenant(tenantID string, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain := r.chains[tenantID]
	n := len(chain)
	if limit > 0 && limit < n {
		n = limit
	}
	results := make([]*Entry, 0, n)
	for i := 0; i < n; i++ {
		copied := *chain[i]
		results = append(results, &copied)
	}
	return results, nil
}

// AnonymizeIPsBefore rewrites the IP address and drops the user agent of
// entries created before the cutoff. Chain hashes are unaffected because
// request metadata is not part of the hash input. Returns the number of
// entries updated.
func (r *InMemoryRepository) AnonymizeIPsBefore(cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := 0
	for _, chain := range r.chains {
		for _, e := range chain {
			if e.IPAddress == "" || !e.CreatedAt.Before(cutoff) {
				continue
			}
			anonymized := AnonymizeIP(e.IPAddress)
			if anonymized != e.IPAddress {
				e.IPAddress = anonymized
				e.UserAgent = ""
				updated++
			}
		}
	}
	return updated, nil
}
