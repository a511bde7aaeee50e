package idempotency

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const keyColumns = `tenant_id, key, method, route, booking_id,
	response_hash, status, response_body, response_status_code, created_at`

// PostgresRepository stores idempotency keys in the idempotency_keys
// table, keyed by (tenant_id, key).
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(tenantID, key string) (*Record, error) {
	var rec Record
	var bookingID sql.NullString
	err := r.db.QueryRow(`
		SELECT `+keyColumns+` FROM idempotency_keys
		WHERE tenant_id = $1 AND key = $2`,
		tenantID, key).Scan(
		&rec.TenantID, &rec.Key, &rec.Method, &rec.Route, &bookingID,
		&rec.ResponseHash, &rec.Status, &rec.ResponseBody,
		&rec.ResponseStatusCode, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	if bookingID.Valid {
		rec.BookingID = &bookingID.String
	}
	return &rec, nil
}

func (r *PostgresRepository) Store(record *Record) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	var bookingID sql.NullString
	if record.BookingID != nil {
		bookingID = sql.NullString{String: *record.BookingID, Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO idempotency_keys (`+keyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.TenantID, record.Key, record.Method, record.Route, bookingID,
		record.ResponseHash, record.Status, record.ResponseBody,
		record.ResponseStatusCode, record.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrKeyExists
		}
		return fmt.Errorf("store idempotency key: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteOlderThan(duration time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-duration)
	res, err := r.db.Exec(`DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old idempotency keys: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old idempotency keys: %w", err)
	}
	return deleted, nil
}
