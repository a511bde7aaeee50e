package tenant

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTenantNotFound is returned when a tenant is not found.
var ErrTenantNotFound = errors.New("tenant not found")

// ErrDuplicateName is returned when a tenant name already exists.
var ErrDuplicateName = errors.New("tenant name already exists")

// Repository defines the interface for tenant data operations.
type Repository interface {
	// Insert stores a new tenant. Generates an ID if not set.
	Insert(t *Tenant) error

	// GetByID retrieves a tenant by its ID.
	GetByID(id string) (*Tenant, error)

	// Update modifies an existing tenant.
	Update(t *Tenant) error

	// List returns all tenants, newest first.
	List() ([]*Tenant, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	tenants map[string]*Tenant
	order   []string
}

// NewInMemoryRepository creates a new in-memory tenant repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		tenants: make(map[string]*Tenant),
	}
}

// Insert stores a new tenant.
func (r *InMemoryRepository) Insert(t *Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tenants {
		if existing.Name == t.Name {
			return ErrDuplicateName
		}
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = StatusActive
	}

	copied := *t
	r.tenants[t.ID] = &copied
	r.order = append(r.order, t.ID)
	return nil
}

// GetByID retrieves a tenant by ID.
func (r *InMemoryRepository) GetByID(id string) (*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tenants[id]
	if !ok {
		return nil, ErrTenantNotFound
	}

	copied := *t
	return &copied, nil
}

// Update modifies an existing tenant.
func (r *InMemoryRepository) Update(t *Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tenants[t.ID]; !ok {
		return ErrTenantNotFound
	}

	now := time.Now().UTC()
	t.UpdatedAt = &now

	copied := *t
	r.tenants[t.ID] = &copied
	return nil
}

// List returns all tenants, newest first.
func (r *InMemoryRepository) List() ([]*Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*Tenant, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		copied := *r.tenants[r.order[i]]
		results = append(results, &copied)
	}
	return results, nil
}
