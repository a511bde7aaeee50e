package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository stores postings in the ledger_postings table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(postings []*Posting) error {
	if err := ValidatePostingSet(postings); err != nil {
		return err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, p := range postings {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := tx.Exec(`
			INSERT INTO ledger_postings
				(id, tenant_id, booking_id, event_id, account, debit, amount, currency, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id, p.TenantID, p.BookingID, p.EventID, p.Account, p.Debit, p.Amount, p.Currency, createdAt,
		)
		if err != nil {
			return fmt.Errorf("insert posting: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit postings: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ByBooking(tenantID, bookingID string) ([]*Posting, error) {
	rows, err := r.db.Query(`
		SELECT id, tenant_id, booking_id, event_id, account, debit, amount, currency, created_at
		FROM ledger_postings
		WHERE tenant_id = $1 AND booking_id = $2
		ORDER BY created_at, id`,
		tenantID, bookingID,
	)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()

	var out []*Posting
	for rows.Next() {
		var p Posting
		if err := rows.Scan(&p.ID, &p.TenantID, &p.BookingID, &p.EventID, &p.Account, &p.Debit, &p.Amount, &p.Currency, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) AccountBalance(tenantID, account string) (int64, error) {
	if !ValidAccounts[account] {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAccount, account)
	}

	var net int64
	err := r.db.QueryRow(`
		SELECT COALESCE(SUM(CASE WHEN debit THEN amount ELSE -amount END), 0)
		FROM ledger_postings
		WHERE tenant_id = $1 AND account = $2`,
		tenantID, account,
	).Scan(&net)
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return net, nil
}

func (r *PostgresRepository) TrialBalance(tenantID string) ([]Balance, error) {
	rows, err := r.db.Query(`
		SELECT account, COALESCE(SUM(CASE WHEN debit THEN amount ELSE -amount END), 0)
		FROM ledger_postings
		WHERE tenant_id = $1
		GROUP BY account
		ORDER BY account`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("query trial balance: %w", err)
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.Account, &b.Net); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
