package booking

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const bookingColumns = `id, tenant_id, agency_id, room_type, guest_name,
	check_in, check_out, nights, status, currency,
	room_total, tax_amount, paid_amount, refunded_amount,
	hold_expires_at, version, created_at, updated_at`

// PostgresRepository stores bookings and their event logs in the
// bookings and booking_events tables.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(b *Booking, created *Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		b.ID, b.TenantID, nullIfEmpty(b.AgencyID), b.RoomType, b.GuestName,
		b.CheckIn, b.CheckOut, b.Nights, b.Status, b.Currency,
		b.RoomTotal, b.TaxAmount, b.PaidAmount, b.RefundedAmount,
		b.HoldExpiresAt, b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	if err := insertEvent(tx, created); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(tenantID, id string) (*Booking, error) {
	row := r.db.QueryRow(`
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

func (r *PostgresRepository) ListByTenant(tenantID string) ([]*Booking, error) {
	rows, err := r.db.Query(`
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE tenant_id = $1
		ORDER BY created_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) AppendEvent(updated *Booking, expectedVersion int, ev *Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE bookings
		SET status = $1, paid_amount = $2, refunded_amount = $3,
		    hold_expires_at = $4, version = $5, updated_at = $6
		WHERE tenant_id = $7 AND id = $8 AND version = $9`,
		updated.Status, updated.PaidAmount, updated.RefundedAmount,
		updated.HoldExpiresAt, updated.Version, updated.UpdatedAt,
		updated.TenantID, updated.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Either the booking is missing or another writer advanced the
		// version first. Distinguish for the caller.
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM bookings WHERE tenant_id = $1 AND id = $2)`,
			updated.TenantID, updated.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check booking exists: %w", err)
		}
		if !exists {
			return ErrBookingNotFound
		}
		return ErrVersionConflict
	}

	if err := insertEvent(tx, ev); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Events(tenantID, bookingID string) ([]*Event, error) {
	if _, err := r.GetByID(tenantID, bookingID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT id, booking_id, tenant_id, type, actor_id, seq, amount, note, created_at
		FROM booking_events
		WHERE tenant_id = $1 AND booking_id = $2
		ORDER BY seq`,
		tenantID, bookingID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var ev Event
		var note sql.NullString
		if err := rows.Scan(&ev.ID, &ev.BookingID, &ev.TenantID, &ev.Type, &ev.ActorID, &ev.Seq, &ev.Amount, &note, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Note = note.String
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ExpiredHolds(now time.Time, limit int) ([]*Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = $1 AND hold_expires_at IS NOT NULL AND hold_expires_at <= $2
		ORDER BY hold_expires_at
		LIMIT $3`,
		StatusHeld, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query expired holds: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func insertEvent(tx *sql.Tx, ev *Event) error {
	_, err := tx.Exec(`
		INSERT INTO booking_events (id, booking_id, tenant_id, type, actor_id, seq, amount, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, ev.BookingID, ev.TenantID, ev.Type, ev.ActorID, ev.Seq, ev.Amount, nullIfEmpty(ev.Note), ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(s scanner) (*Booking, error) {
	var b Booking
	var agencyID sql.NullString
	var holdExpiresAt sql.NullTime
	err := s.Scan(
		&b.ID, &b.TenantID, &agencyID, &b.RoomType, &b.GuestName,
		&b.CheckIn, &b.CheckOut, &b.Nights, &b.Status, &b.Currency,
		&b.RoomTotal, &b.TaxAmount, &b.PaidAmount, &b.RefundedAmount,
		&holdExpiresAt, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	b.AgencyID = agencyID.String
	if holdExpiresAt.Valid {
		t := holdExpiresAt.Time
		b.HoldExpiresAt = &t
	}
	return &b, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
