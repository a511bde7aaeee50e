package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository backed by the audit_entries table.
// Appends take a per-tenant advisory lock inside the transaction so two
// concurrent appends cannot both read the same chain head and fork the chain.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed audit repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const entryColumns = `id, tenant_id, seq, actor_id, entity_type, entity_id,
	action, outcome, created_at, request_id, ip_address, user_agent, prev_hash, hash`

// Append records an audit event on the tenant's hash chain.
func (r *PostgresRepository) Append(rec Record) (*Entry, error) {
	if rec.TenantID == "" {
		return nil, ErrInvalidTenantID
	}
	if err := validateRecord(rec.EntityType, rec.EntityID, rec.Action); err != nil {
		return nil, err
	}

	outcome := rec.Outcome
	if outcome == "" {
		outcome = OutcomeSuccess
	}

	ctx := context.Background()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Serialize appends per tenant for the duration of the transaction.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.TenantID); err != nil {
		return nil, fmt.Errorf("failed to acquire chain lock: %w", err)
	}

	var prevSeq sql.NullInt64
	var prevHash sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT seq, hash FROM audit_entries WHERE tenant_id = $1 ORDER BY seq DESC LIMIT 1`,
		rec.TenantID).Scan(&prevSeq, &prevHash)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read chain head: %w", err)
	}

	entry := &Entry{
		ID:         uuid.New().String(),
		TenantID:   rec.TenantID,
		Seq:        prevSeq.Int64 + 1,
		ActorID:    rec.ActorID,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Action:     rec.Action,
		Outcome:    outcome,
		CreatedAt:  appendTimestamp(),
		RequestID:  rec.RequestID,
		IPAddress:  rec.IPAddress,
		UserAgent:  rec.UserAgent,
		PrevHash:   prevHash.String,
	}
	entry.Hash = ComputeHash(entry)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_entries (`+entryColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		entry.ID, entry.TenantID, entry.Seq, entry.ActorID, entry.EntityType,
		entry.EntityID, entry.Action, entry.Outcome, entry.CreatedAt,
		nullIfEmpty(entry.RequestID), nullIfEmpty(entry.IPAddress),
		nullIfEmpty(entry.UserAgent), nullIfEmpty(entry.PrevHash), entry.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit audit entry: %w", err)
	}

	copied := *entry
	return &copied, nil
}

// LastHash returns the hash of the newest entry in the tenant's chain.
func (r *PostgresRepository) LastHash(tenantID string) (string, error) {
	var hash string
	err := r.db.QueryRow(
		`SELECT hash FROM audit_entries WHERE tenant_id = $1 ORDER BY seq DESC LIMIT 1`,
		tenantID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read chain head: %w", err)
	}
	return hash, nil
}

// VerifyChain recomputes every link in the tenant's chain.
func (r *PostgresRepository) VerifyChain(tenantID string) (int64, error) {
	entries, err := r.QueryByTenant(tenantID, 0)
	if err != nil {
		return 0, err
	}
	return VerifyChain(entries), nil
}

// QueryByEntity retrieves entries for a specific entity, newest first.
func (r *PostgresRepository) QueryByEntity(tenantID, entityType, entityID string, limit int) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_entries
		WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY seq DESC`
	args := []interface{}{tenantID, entityType, entityID}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}
	return r.queryEntries(query, args...)
}

// QueryByActor retrieves entries for a specific actor, newest first.
func (r *PostgresRepository) QueryByActor(tenantID, actorID string, limit int) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_entries
		WHERE tenant_id = $1 AND actor_id = $2
		ORDER BY seq DESC`
	args := []interface{}{tenantID, actorID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return r.queryEntries(query, args...)
}

// QueryByTenant retrieves all entries for a tenant in chain order.
func (r *PostgresRepository) QueryByTenant(tenantID string, limit int) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_entries
		WHERE tenant_id = $1
		ORDER BY seq ASC`
	args := []interface{}{tenantID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.queryEntries(query, args...)
}

// AnonymizeIPsBefore rewrites full client IPs recorded before the cutoff
// and drops the user agent alongside. Returns the number of entries updated.
func (r *PostgresRepository) AnonymizeIPsBefore(cutoff time.Time) (int, error) {
	ctx := context.Background()
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, ip_address FROM audit_entries
		 WHERE created_at < $1 AND ip_address IS NOT NULL AND ip_anonymized_at IS NULL`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to query entries for anonymization: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id string
		ip string
	}
	var targets []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.ip); err != nil {
			return 0, fmt.Errorf("failed to scan entry: %w", err)
		}
		targets = append(targets, p)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("row iteration error: %w", err)
	}

	updated := 0
	for _, p := range targets {
		anonymized := AnonymizeIP(p.ip)
		_, err := r.db.ExecContext(ctx,
			`UPDATE audit_entries SET ip_address = $1, user_agent = NULL, ip_anonymized_at = NOW() WHERE id = $2`,
			nullIfEmpty(anonymized), p.id)
		if err != nil {
			return updated, fmt.Errorf("failed to anonymize entry %s: %w", p.id, err)
		}
		updated++
	}
	return updated, nil
}

func (r *PostgresRepository) queryEntries(query string, args ...interface{}) ([]*Entry, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var requestID, ipAddress, userAgent, prevHash sql.NullString
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Seq, &e.ActorID, &e.EntityType,
			&e.EntityID, &e.Action, &e.Outcome, &e.CreatedAt,
			&requestID, &ipAddress, &userAgent, &prevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.RequestID = requestID.String
		e.IPAddress = ipAddress.String
		e.UserAgent = userAgent.String
		e.PrevHash = prevHash.String
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
