package tenant

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const tenantColumns = `id, name, type, status, currency, commission_percent, created_at, updated_at`

// PostgresRepository stores tenants in the tenants table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new tenant. Duplicate names map to ErrDuplicateName
// via the unique constraint on tenants.name.
func (r *PostgresRepository) Insert(t *Tenant) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(`
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Name, t.Type, t.Status, t.Currency, t.CommissionPercent,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicateName
		}
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(id string) (*Tenant, error) {
	row := r.db.QueryRow(`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

func (r *PostgresRepository) Update(t *Tenant) error {
	now := time.Now().UTC()
	res, err := r.db.Exec(`
		UPDATE tenants
		SET name = $2, status = $3, commission_percent = $4, updated_at = $5
		WHERE id = $1`,
		t.ID, t.Name, t.Status, t.CommissionPercent, now,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicateName
		}
		return fmt.Errorf("update tenant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if affected == 0 {
		return ErrTenantNotFound
	}
	t.UpdatedAt = &now
	return nil
}

func (r *PostgresRepository) List() ([]*Tenant, error) {
	rows, err := r.db.Query(`SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTenant(row rowScanner) (*Tenant, error) {
	var t Tenant
	var updatedAt sql.NullTime
	err := row.Scan(&t.ID, &t.Name, &t.Type, &t.Status, &t.Currency,
		&t.CommissionPercent, &t.CreatedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan tenant: %w", err)
	}
	if updatedAt.Valid {
		t.UpdatedAt = &updatedAt.Time
	}
	return &t, nil
}
