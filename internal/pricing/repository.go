package pricing

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRatePlanNotFound is returned when no plan exists for the
// tenant/room type pair.
var ErrRatePlanNotFound = errors.New("rate plan not found")

// Repository stores rate plans keyed by tenant and room type.
type Repository interface {
	Upsert(p *RatePlan) error
	Get(tenantID, roomType string) (*RatePlan, error)
	ListByTenant(tenantID string) ([]*RatePlan, error)
}

// InMemoryRepository keeps rate plans in memory. Used in tests and local
// development.
type InMemoryRepository struct {
	mu    sync.RWMutex
	plans map[string]*RatePlan
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{plans: make(map[string]*RatePlan)}
}

func planKey(tenantID, roomType string) string {
	return tenantID + "/" + roomType
}

func (r *InMemoryRepository) Upsert(p *RatePlan) error {
	if p.TenantID == "" || p.RoomType == "" {
		return errors.New("tenant id and room type required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	stored := clonePlan(p)
	if existing, ok := r.plans[planKey(p.TenantID, p.RoomType)]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	r.plans[planKey(p.TenantID, p.RoomType)] = stored
	p.ID = stored.ID
	p.CreatedAt = stored.CreatedAt
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *InMemoryRepository) Get(tenantID, roomType string) (*RatePlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plans[planKey(tenantID, roomType)]
	if !ok {
		return nil, ErrRatePlanNotFound
	}
	return clonePlan(p), nil
}

func (r *InMemoryRepository) ListByTenant(tenantID string) ([]*RatePlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*RatePlan
	for _, p := range r.plans {
		if p.TenantID == tenantID {
			out = append(out, clonePlan(p))
		}
	}
	return out, nil
}

func clonePlan(p *RatePlan) *RatePlan {
	cp := *p
	if p.OccupancyMultipliers != nil {
		cp.OccupancyMultipliers = make(map[int]float64, len(p.OccupancyMultipliers))
		for k, v := range p.OccupancyMultipliers {
			cp.OccupancyMultipliers[k] = v
		}
	}
	if p.Overrides != nil {
		cp.Overrides = make([]SeasonalOverride, len(p.Overrides))
		copy(cp.Overrides, p.Overrides)
	}
	return &cp
}
