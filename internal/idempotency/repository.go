package idempotency

import (
	"sync"
	"time"
)

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu   sync.RWMutex
	keys map[string]*Record
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{keys: make(map[string]*Record)}
}

func scopedKey(tenantID, key string) string {
	return tenantID + "\x00" + key
}

func (r *InMemoryRepository) Get(tenantID, key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.keys[scopedKey(tenantID, key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return copyRecord(record), nil
}

func (r *InMemoryRepository) Store(record *Record) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := scopedKey(record.TenantID, record.Key)
	if _, exists := r.keys[k]; exists {
		return ErrKeyExists
	}

	stored := copyRecord(record)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.keys[k] = stored
	return nil
}

func (r *InMemoryRepository) DeleteOlderThan(duration time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-duration)
	deleted := int64(0)
	for k, record := range r.keys {
		if record.CreatedAt.Before(cutoff) {
			delete(r.keys, k)
			deleted++
		}
	}
	return deleted, nil
}

func copyRecord(record *Record) *Record {
	if record == nil {
		return nil
	}
	copied := *record
	if record.BookingID != nil {
		bookingID := *record.BookingID
		copied.BookingID = &bookingID
	}
	return &copied
}
