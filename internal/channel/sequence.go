package channel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
)

// SequenceTracker persists the highest feed sequence number already
// applied, so a restarted sync resumes instead of replaying the feed.
type SequenceTracker interface {
	GetLastSequence(ctx context.Context) (int64, error)
	UpdateSequence(ctx context.Context, seq int64) error
}

// PostgresSequenceTracker stores the cursor in the single-row
// channel_state table.
type PostgresSequenceTracker struct {
	db *sql.DB
}

func NewPostgresSequenceTracker(db *sql.DB) *PostgresSequenceTracker {
	return &PostgresSequenceTracker{db: db}
}

// GetLastSequence returns the stored cursor, or 0 before the first
// update.
func (t *PostgresSequenceTracker) GetLastSequence(ctx context.Context) (int64, error) {
	var cursor int64
	err := t.db.QueryRowContext(ctx,
		`SELECT cursor FROM channel_state WHERE id = 1`).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load channel cursor: %w", err)
	}
	return cursor, nil
}

// UpdateSequence advances the cursor. The upsert never moves it
// backwards, so late or duplicate acknowledgements are harmless.
func (t *PostgresSequenceTracker) UpdateSequence(ctx context.Context, seq int64) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO channel_state (id, cursor, last_updated)
		 VALUES (1, $1, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET cursor = GREATEST(channel_state.cursor, EXCLUDED.cursor),
		     last_updated = NOW()`, seq)
	if err != nil {
		return fmt.Errorf("failed to store channel cursor: %w", err)
	}
	return nil
}

// InMemorySequenceTracker keeps the cursor in memory, for tests and
// single-run tooling.
type InMemorySequenceTracker struct {
	cursor atomic.Int64
}

func NewInMemorySequenceTracker() *InMemorySequenceTracker {
	return &InMemorySequenceTracker{}
}

func (t *InMemorySequenceTracker) GetLastSequence(ctx context.Context) (int64, error) {
	return t.cursor.Load(), nil
}

// UpdateSequence advances the cursor, ignoring values behind it.
func (t *InMemorySequenceTracker) UpdateSequence(ctx context.Context, seq int64) error {
	for {
		current := t.cursor.Load()
		if seq <= current {
			return nil
		}
		if t.cursor.CompareAndSwap(current, seq) {
			return nil
		}
	}
}
