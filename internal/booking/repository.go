package booking

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrBookingNotFound is returned when the booking does not exist for
	// the tenant.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrVersionConflict is returned when an append's expected version
	// does not match the stored booking. The caller should reload and
	// retry.
	ErrVersionConflict = errors.New("booking version conflict")
)

// Repository stores booking head rows and their event logs. Appends are
// atomic over both: the event insert and the head update succeed or fail
// together.
type Repository interface {
	Insert(b *Booking, created *Event) error
	GetByID(tenantID, id string) (*Booking, error)
	ListByTenant(tenantID string) ([]*Booking, error)

	// AppendEvent stores ev and applies the updated head row, guarded by
	// expectedVersion.
	AppendEvent(updated *Booking, expectedVersion int, ev *Event) error

	Events(tenantID, bookingID string) ([]*Event, error)

	// ExpiredHolds returns held bookings whose hold TTL passed before
	// now, across all tenants, up to limit.
	ExpiredHolds(now time.Time, limit int) ([]*Booking, error)
}

// InMemoryRepository keeps bookings and events in memory. Used in tests
// and local development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]*Booking
	events   map[string][]*Event
	order    []string
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		bookings: make(map[string]*Booking),
		events:   make(map[string][]*Event),
	}
}

func (r *InMemoryRepository) Insert(b *Booking, created *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookings[b.ID]; exists {
		return errors.New("booking already exists")
	}

	stored := *b
	r.bookings[b.ID] = &stored
	r.order = append(r.order, b.ID)

	ev := *created
	r.events[b.ID] = append(r.events[b.ID], &ev)
	return nil
}

func (r *InMemoryRepository) GetByID(tenantID, id string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok || b.TenantID != tenantID {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *InMemoryRepository) ListByTenant(tenantID string) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Booking
	for _, id := range r.order {
		b := r.bookings[id]
		if b.TenantID != tenantID {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (r *InMemoryRepository) AppendEvent(updated *Booking, expectedVersion int, ev *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.bookings[updated.ID]
	if !ok || current.TenantID != updated.TenantID {
		return ErrBookingNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}

	stored := *updated
	r.bookings[updated.ID] = &stored

	cp := *ev
	r.events[updated.ID] = append(r.events[updated.ID], &cp)
	return nil
}

func (r *InMemoryRepository) Events(tenantID, bookingID string) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[bookingID]
	if !ok || b.TenantID != tenantID {
		return nil, ErrBookingNotFound
	}

	events := r.events[bookingID]
	out := make([]*Event, 0, len(events))
	for _, ev := range events {
		cp := *ev
		out = append(out, &cp)
	}
	return out, nil
}

func (r *InMemoryRepository) ExpiredHolds(now time.Time, limit int) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Booking
	for _, id := range r.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		b := r.bookings[id]
		if b.Status != StatusHeld || b.HoldExpiresAt == nil {
			continue
		}
		if b.HoldExpiresAt.After(now) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}
