package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Processor applies decoded feed frames to the store and advances the
// sequence cursor. Frames at or below the cursor are skipped, so a feed
// replay after reconnect is idempotent.
type Processor struct {
	store   Store
	tracker SequenceTracker
	metrics *Metrics
	logger  *slog.Logger
}

// NewProcessor creates a Processor. A nil metrics disables instrumentation.
func NewProcessor(store Store, tracker SequenceTracker, metrics *Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:   store,
		tracker: tracker,
		metrics: metrics,
		logger:  logger,
	}
}

// Handle implements FrameHandler. Malformed frames are logged and
// dropped; store and cursor failures propagate so the client reconnects
// and replays from the last acknowledged sequence.
func (p *Processor) Handle(payload []byte) error {
	frame, err := DecodeFrame(payload)
	if err != nil {
		p.logger.Warn("failed to decode feed frame", "error", err)
		if p.metrics != nil {
			p.metrics.IncFrameErrors("decode_error")
		}
		return nil
	}

	update, err := MapFrame(frame)
	if err != nil {
		p.logger.Warn("invalid feed frame", "seq", frame.Seq, "error", err)
		if p.metrics != nil {
			p.metrics.IncFrameErrors("validation_error")
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := p.tracker.GetLastSequence(ctx)
	if err != nil {
		return fmt.Errorf("failed to read sequence cursor: %w", err)
	}
	if update.Seq <= cursor {
		p.logger.Debug("skipping stale feed frame", "seq", update.Seq, "cursor", cursor)
		if p.metrics != nil {
			p.metrics.IncFramesSkipped()
		}
		return nil
	}

	if err := p.apply(ctx, update); err != nil {
		if p.metrics != nil {
			p.metrics.IncFrameErrors("store_error")
		}
		return fmt.Errorf("failed to apply feed frame: %w", err)
	}

	if err := p.tracker.UpdateSequence(ctx, update.Seq); err != nil {
		return fmt.Errorf("failed to advance sequence cursor: %w", err)
	}

	if p.metrics != nil {
		p.metrics.IncFramesProcessed(update.Kind)
	}
	p.logger.Debug("applied feed frame",
		"seq", update.Seq,
		"kind", update.Kind,
		"tenant_id", update.TenantID,
		"room_type", update.RoomType)
	return nil
}

func (p *Processor) apply(ctx context.Context, u *Update) error {
	switch u.Kind {
	case KindAvailability:
		return p.store.SetAvailability(ctx, u.TenantID, u.RoomType, u.Date, u.Available)
	case KindRate:
		return p.store.SetRate(ctx, u.TenantID, u.RoomType, u.Date, u.Rate)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, u.Kind)
	}
}
