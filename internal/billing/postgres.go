package billing

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const invoiceColumns = `id, tenant_id, booking_id, number, status, currency,
	lines, total, amount_due, stripe_session_id, created_at, settled_at`

// PostgresRepository stores invoices in the invoices table. Lines are
// kept as JSONB since they are immutable once the invoice is assembled.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(inv *Invoice) error {
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	lines, err := json.Marshal(inv.Lines)
	if err != nil {
		return fmt.Errorf("marshal invoice lines: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		inv.ID, inv.TenantID, inv.BookingID, inv.Number, inv.Status, inv.Currency,
		lines, inv.Total, inv.AmountDue, nullIfEmpty(inv.StripeSessionID),
		inv.CreatedAt, inv.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(tenantID, id string) (*Invoice, error) {
	row := r.db.QueryRow(`
		SELECT `+invoiceColumns+` FROM invoices
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	return scanInvoice(row)
}

func (r *PostgresRepository) ListByBooking(tenantID, bookingID string) ([]*Invoice, error) {
	rows, err := r.db.Query(`
		SELECT `+invoiceColumns+` FROM invoices
		WHERE tenant_id = $1 AND booking_id = $2
		ORDER BY created_at ASC`,
		tenantID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

func (r *PostgresRepository) Update(inv *Invoice) error {
	res, err := r.db.Exec(`
		UPDATE invoices
		SET status = $3, stripe_session_id = $4, settled_at = $5
		WHERE tenant_id = $1 AND id = $2`,
		inv.TenantID, inv.ID, inv.Status, nullIfEmpty(inv.StripeSessionID), inv.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if affected == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*Invoice, error) {
	var inv Invoice
	var lines []byte
	var sessionID sql.NullString
	var settledAt sql.NullTime
	err := row.Scan(&inv.ID, &inv.TenantID, &inv.BookingID, &inv.Number,
		&inv.Status, &inv.Currency, &lines, &inv.Total, &inv.AmountDue,
		&sessionID, &inv.CreatedAt, &settledAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	if len(lines) > 0 {
		if err := json.Unmarshal(lines, &inv.Lines); err != nil {
			return nil, fmt.Errorf("unmarshal invoice lines: %w", err)
		}
	}
	inv.StripeSessionID = sessionID.String
	if settledAt.Valid {
		inv.SettledAt = &settledAt.Time
	}
	return &inv, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// PostgresWebhookRepository tracks processed Stripe events in the
// webhook_events table. The unique index on event_id makes RecordEvent
// safe under concurrent deliveries of the same event.
type PostgresWebhookRepository struct {
	db *sql.DB
}

func NewPostgresWebhookRepository(db *sql.DB) *PostgresWebhookRepository {
	return &PostgresWebhookRepository{db: db}
}

func (r *PostgresWebhookRepository) RecordEvent(eventID, eventType string) error {
	res, err := r.db.Exec(`
		INSERT INTO webhook_events (id, event_id, event_type, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING`,
		uuid.NewString(), eventID, eventType, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	if affected == 0 {
		return ErrEventAlreadyProcessed
	}
	return nil
}

func (r *PostgresWebhookRepository) HasProcessed(eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id = $1)`,
		eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check webhook event: %w", err)
	}
	return exists, nil
}
