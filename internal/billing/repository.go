package billing

import (
	"sync"
	"time"
)

// Repository stores invoices.
type Repository interface {
	Insert(inv *Invoice) error
	GetByID(tenantID, id string) (*Invoice, error)
	ListByBooking(tenantID, bookingID string) ([]*Invoice, error)
	Update(inv *Invoice) error
}

// InMemoryRepository keeps invoices in memory. Used in tests and local
// development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	invoices map[string]*Invoice
	order    []string
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{invoices: make(map[string]*Invoice)}
}

func (r *InMemoryRepository) Insert(inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneInvoice(inv)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.invoices[inv.ID] = stored
	r.order = append(r.order, inv.ID)
	return nil
}

func (r *InMemoryRepository) GetByID(tenantID, id string) (*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, ErrInvoiceNotFound
	}
	return cloneInvoice(inv), nil
}

func (r *InMemoryRepository) ListByBooking(tenantID, bookingID string) ([]*Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Invoice
	for _, id := range r.order {
		inv := r.invoices[id]
		if inv.TenantID == tenantID && inv.BookingID == bookingID {
			out = append(out, cloneInvoice(inv))
		}
	}
	return out, nil
}

func (r *InMemoryRepository) Update(inv *Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.invoices[inv.ID]
	if !ok || existing.TenantID != inv.TenantID {
		return ErrInvoiceNotFound
	}
	r.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func cloneInvoice(inv *Invoice) *Invoice {
	cp := *inv
	if inv.Lines != nil {
		cp.Lines = make([]Line, len(inv.Lines))
		copy(cp.Lines, inv.Lines)
	}
	if inv.SettledAt != nil {
		t := *inv.SettledAt
		cp.SettledAt = &t
	}
	return &cp
}
