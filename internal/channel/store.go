package channel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no value is stored for the given key.
var ErrNotFound = errors.New("no value stored")

// DefaultEntryTTL bounds how long a synced value stays fresh without an
// update from the feed.
const DefaultEntryTTL = 48 * time.Hour

// Store holds the latest synced availability counts and rates per
// tenant, room type, and calendar day.
type Store interface {
	// SetAvailability stores the available room count for one day.
	SetAvailability(ctx context.Context, tenantID, roomType string, date time.Time, available int64) error

	// GetAvailability returns the stored count, or ErrNotFound.
	GetAvailability(ctx context.Context, tenantID, roomType string, date time.Time) (int64, error)

	// SetRate stores the channel rate (minor units) for one day.
	SetRate(ctx context.Context, tenantID, roomType string, date time.Time, rate int64) error

	// GetRate returns the stored rate, or ErrNotFound.
	GetRate(ctx context.Context, tenantID, roomType string, date time.Time) (int64, error)
}

func availabilityKey(tenantID, roomType string, date time.Time) string {
	return fmt.Sprintf("channel:avail:%s:%s:%s", tenantID, roomType, date.UTC().Format("2006-01-02"))
}

func rateKey(tenantID, roomType string, date time.Time) string {
	return fmt.Sprintf("channel:rate:%s:%s:%s", tenantID, roomType, date.UTC().Format("2006-01-02"))
}

// RedisStore implements Store on Redis with per-entry TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. A non-positive ttl uses
// DefaultEntryTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) SetAvailability(ctx context.Context, tenantID, roomType string, date time.Time, available int64) error {
	return s.client.Set(ctx, availabilityKey(tenantID, roomType, date), available, s.ttl).Err()
}

func (s *RedisStore) GetAvailability(ctx context.Context, tenantID, roomType string, date time.Time) (int64, error) {
	return s.get(ctx, availabilityKey(tenantID, roomType, date))
}

func (s *RedisStore) SetRate(ctx context.Context, tenantID, roomType string, date time.Time, rate int64) error {
	return s.client.Set(ctx, rateKey(tenantID, roomType, date), rate, s.ttl).Err()
}

func (s *RedisStore) GetRate(ctx context.Context, tenantID, roomType string, date time.Time) (int64, error) {
	return s.get(ctx, rateKey(tenantID, roomType, date))
}

func (s *RedisStore) get(ctx context.Context, key string) (int64, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt value for %s: %w", key, err)
	}
	return n, nil
}

// InMemoryStore implements Store in memory, for testing and development.
// TTLs are not enforced.
type InMemoryStore struct {
	mu     sync.RWMutex
	values map[string]int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{values: make(map[string]int64)}
}

func (s *InMemoryStore) SetAvailability(ctx context.Context, tenantID, roomType string, date time.Time, available int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[availabilityKey(tenantID, roomType, date)] = available
	return nil
}

func (s *InMemoryStore) GetAvailability(ctx context.Context, tenantID, roomType string, date time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[availabilityKey(tenantID, roomType, date)]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

func (s *InMemoryStore) SetRate(ctx context.Context, tenantID, roomType string, date time.Time, rate int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[rateKey(tenantID, roomType, date)] = rate
	return nil
}

func (s *InMemoryStore) GetRate(ctx context.Context, tenantID, roomType string, date time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[rateKey(tenantID, roomType, date)]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}
