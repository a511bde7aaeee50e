package pricing

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const ratePlanColumns = `id, tenant_id, room_type, base_rate, currency,
	tax_percent, agency_discount_percent, occupancy_multipliers, overrides,
	created_at, updated_at`

// PostgresRepository stores rate plans in the rate_plans table.
// Occupancy multipliers and seasonal overrides are kept as JSONB since
// they are always read and written as a unit with the plan.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts or replaces the plan for the tenant/room type pair.
func (r *PostgresRepository) Upsert(p *RatePlan) error {
	if p.TenantID == "" || p.RoomType == "" {
		return fmt.Errorf("tenant id and room type required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	multipliers, err := json.Marshal(p.OccupancyMultipliers)
	if err != nil {
		return fmt.Errorf("marshal occupancy multipliers: %w", err)
	}
	overrides, err := json.Marshal(p.Overrides)
	if err != nil {
		return fmt.Errorf("marshal overrides: %w", err)
	}

	now := time.Now().UTC()
	err = r.db.QueryRow(`
		INSERT INTO rate_plans (`+ratePlanColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (tenant_id, room_type) DO UPDATE SET
			base_rate = EXCLUDED.base_rate,
			currency = EXCLUDED.currency,
			tax_percent = EXCLUDED.tax_percent,
			agency_discount_percent = EXCLUDED.agency_discount_percent,
			occupancy_multipliers = EXCLUDED.occupancy_multipliers,
			overrides = EXCLUDED.overrides,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`,
		p.ID, p.TenantID, p.RoomType, p.BaseRate, p.Currency,
		p.TaxPercent, p.AgencyDiscountPercent, multipliers, overrides, now,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert rate plan: %w", err)
	}
	p.UpdatedAt = now
	return nil
}

func (r *PostgresRepository) Get(tenantID, roomType string) (*RatePlan, error) {
	row := r.db.QueryRow(`
		SELECT `+ratePlanColumns+` FROM rate_plans
		WHERE tenant_id = $1 AND room_type = $2`,
		tenantID, roomType)
	return scanRatePlan(row)
}

func (r *PostgresRepository) ListByTenant(tenantID string) ([]*RatePlan, error) {
	rows, err := r.db.Query(`
		SELECT `+ratePlanColumns+` FROM rate_plans
		WHERE tenant_id = $1 ORDER BY room_type ASC`,
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("list rate plans: %w", err)
	}
	defer rows.Close()

	var plans []*RatePlan
	for rows.Next() {
		p, err := scanRatePlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate plans: %w", err)
	}
	return plans, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRatePlan(row rowScanner) (*RatePlan, error) {
	var p RatePlan
	var multipliers, overrides []byte
	err := row.Scan(&p.ID, &p.TenantID, &p.RoomType, &p.BaseRate, &p.Currency,
		&p.TaxPercent, &p.AgencyDiscountPercent, &multipliers, &overrides,
		&p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRatePlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan rate plan: %w", err)
	}
	if len(multipliers) > 0 {
		if err := json.Unmarshal(multipliers, &p.OccupancyMultipliers); err != nil {
			return nil, fmt.Errorf("unmarshal occupancy multipliers: %w", err)
		}
	}
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &p.Overrides); err != nil {
			return nil, fmt.Errorf("unmarshal overrides: %w", err)
		}
	}
	return &p, nil
}
