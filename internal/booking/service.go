package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lodgeline/lodgeline/internal/audit"
	"github.com/lodgeline/lodgeline/internal/ledger"
	"github.com/lodgeline/lodgeline/internal/middleware"
	"github.com/lodgeline/lodgeline/internal/tenant"
)

var (
	// ErrInvalidStay is returned when check-out is not after check-in.
	ErrInvalidStay = errors.New("check-out must be after check-in")

	// ErrRefundExceedsPaid is returned when a refund would exceed the
	// net amount paid on the booking.
	ErrRefundExceedsPaid = errors.New("refund exceeds paid amount")

	// ErrAmountRequired is returned when a financial event is applied
	// without an amount.
	ErrAmountRequired = errors.New("amount required for financial event")
)

// auditActions maps lifecycle event types to audit action names.
var auditActions = map[string]string{
	EventCreated:         "booking_create",
	EventHeld:            "booking_hold",
	EventConfirmed:       "booking_confirm",
	EventCheckedIn:       "booking_check_in",
	EventCheckedOut:      "booking_check_out",
	EventCancelled:       "booking_cancel",
	EventNoShow:          "booking_no_show",
	EventHoldExpired:     "booking_hold_expire",
	EventPaymentRecorded: "payment_record",
	EventRefundRecorded:  "refund_record",
}

// Service drives the booking lifecycle. Every accepted event is appended
// to the booking's log, recorded on the tenant's audit chain, and, for
// financial events, posted to the ledger.
type Service struct {
	bookings Repository
	ledger   ledger.Repository
	audit    audit.Repository
	tenants  tenant.Repository
	logger   *slog.Logger
	holdTTL  time.Duration
	now      func() time.Time
}

func NewService(bookings Repository, led ledger.Repository, aud audit.Repository, tenants tenant.Repository, logger *slog.Logger, holdTTL time.Duration) *Service {
	return &Service{
		bookings: bookings,
		ledger:   led,
		audit:    aud,
		tenants:  tenants,
		logger:   logger,
		holdTTL:  holdTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput carries the fields of a new draft booking. Amounts are
// minor units in the booking currency.
type CreateInput struct {
	TenantID  string
	AgencyID  string
	RoomType  string
	GuestName string
	CheckIn   time.Time
	CheckOut  time.Time
	Currency  string
	RoomTotal int64
	TaxAmount int64
}

// Create stores a draft booking with its created event and audits it.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Booking, error) {
	if in.TenantID == "" {
		return nil, errors.New("tenant id required")
	}
	if in.RoomType == "" {
		return nil, errors.New("room type required")
	}
	nights := int(in.CheckOut.Sub(in.CheckIn).Hours() / 24)
	if nights <= 0 {
		return nil, ErrInvalidStay
	}

	now := s.now()
	b := &Booking{
		ID:        uuid.NewString(),
		TenantID:  in.TenantID,
		AgencyID:  in.AgencyID,
		RoomType:  in.RoomType,
		GuestName: in.GuestName,
		CheckIn:   in.CheckIn,
		CheckOut:  in.CheckOut,
		Nights:    nights,
		Status:    StatusDraft,
		Currency:  in.Currency,
		RoomTotal: in.RoomTotal,
		TaxAmount: in.TaxAmount,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ev := &Event{
		ID:        uuid.NewString(),
		BookingID: b.ID,
		TenantID:  b.TenantID,
		Type:      EventCreated,
		ActorID:   middleware.GetActorID(ctx),
		Seq:       1,
		CreatedAt: now,
	}

	if err := s.bookings.Insert(b, ev); err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	if err := audit.LogAction(ctx, s.audit, "booking", b.ID, auditActions[EventCreated], audit.OutcomeSuccess); err != nil {
		return nil, fmt.Errorf("audit booking create: %w", err)
	}

	s.logger.Info("booking created",
		slog.String("booking_id", b.ID),
		slog.String("tenant_id", b.TenantID),
		slog.String("room_type", b.RoomType),
		slog.Int("nights", nights),
	)
	return b, nil
}

// ApplyInput carries the optional fields of a lifecycle event. Amount is
// the payment, refund, or cancellation fee in minor units.
type ApplyInput struct {
	Amount int64
	Note   string
}

// Apply validates the event against the state machine, appends it with a
// version check, audits it, and posts ledger entries for financial
// events. An audit or ledger failure fails the whole operation.
func (s *Service) Apply(ctx context.Context, tenantID, bookingID, eventType string, in ApplyInput) (*Booking, error) {
	b, err := s.bookings.GetByID(tenantID, bookingID)
	if err != nil {
		return nil, err
	}

	next, err := NextStatus(b.Status, eventType)
	if err != nil {
		s.auditFailure(ctx, bookingID, eventType)
		return nil, err
	}

	if err := s.applyMoney(b, eventType, in.Amount); err != nil {
		s.auditFailure(ctx, bookingID, eventType)
		return nil, err
	}

	now := s.now()
	expectedVersion := b.Version

	prevStatus := b.Status
	b.Status = next
	b.Version++
	b.UpdatedAt = now
	if eventType == EventHeld {
		expiry := now.Add(s.holdTTL)
		b.HoldExpiresAt = &expiry
	} else if prevStatus == StatusHeld {
		b.HoldExpiresAt = nil
	}

	ev := &Event{
		ID:        uuid.NewString(),
		BookingID: b.ID,
		TenantID:  b.TenantID,
		Type:      eventType,
		ActorID:   middleware.GetActorID(ctx),
		Seq:       b.Version,
		Amount:    in.Amount,
		Note:      in.Note,
		CreatedAt: now,
	}

	if err := s.bookings.AppendEvent(b, expectedVersion, ev); err != nil {
		return nil, err
	}
	if err := audit.LogAction(ctx, s.audit, "booking", b.ID, auditActions[eventType], audit.OutcomeSuccess); err != nil {
		return nil, fmt.Errorf("audit %s: %w", eventType, err)
	}
	if err := s.post(ctx, b, ev); err != nil {
		return nil, err
	}

	s.logger.Info("booking event applied",
		slog.String("booking_id", b.ID),
		slog.String("tenant_id", b.TenantID),
		slog.String("event", eventType),
		slog.String("status", b.Status),
	)
	return b, nil
}

// ExpireHolds applies hold_expired to every held booking whose TTL
// passed. Concurrent expiry and races with a confirm are tolerated: a
// version conflict or invalid transition means someone else moved the
// booking first, which is the desired outcome either way.
func (s *Service) ExpireHolds(ctx context.Context, limit int) (int, error) {
	holds, err := s.bookings.ExpiredHolds(s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired holds: %w", err)
	}

	expired := 0
	for _, b := range holds {
		jobCtx := middleware.SetTenantID(ctx, b.TenantID)
		jobCtx = middleware.SetActorID(jobCtx, "system")
		_, err := s.Apply(jobCtx, b.TenantID, b.ID, EventHoldExpired, ApplyInput{})
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("expire hold %s: %w", b.ID, err)
		}
		expired++
	}
	return expired, nil
}

// applyMoney validates and applies payment/refund totals on the head row.
func (s *Service) applyMoney(b *Booking, eventType string, amount int64) error {
	switch eventType {
	case EventPaymentRecorded:
		if amount <= 0 {
			return ErrAmountRequired
		}
		b.PaidAmount += amount
	case EventRefundRecorded:
		if amount <= 0 {
			return ErrAmountRequired
		}
		if amount > b.PaidAmount-b.RefundedAmount {
			return ErrRefundExceedsPaid
		}
		b.RefundedAmount += amount
	}
	return nil
}

// post appends the ledger postings for a financial event.
func (s *Service) post(ctx context.Context, b *Booking, ev *Event) error {
	amounts := ledger.EventAmounts{
		TenantID:  b.TenantID,
		BookingID: b.ID,
		EventID:   ev.ID,
		Currency:  b.Currency,
	}
	switch ev.Type {
	case EventConfirmed:
		amounts.RoomTotal = b.RoomTotal
		amounts.TaxAmount = b.TaxAmount
	case EventPaymentRecorded:
		amounts.PaymentAmount = ev.Amount
		amounts.CommissionAmount = s.commission(b, ev.Amount)
	case EventCancelled, EventNoShow:
		amounts.FeeAmount = ev.Amount
	case EventRefundRecorded:
		amounts.RefundAmount = ev.Amount
	default:
		return nil
	}

	postings, err := ledger.PostingsForEvent(ev.Type, amounts)
	if err != nil {
		return fmt.Errorf("build postings for %s: %w", ev.Type, err)
	}
	if postings == nil {
		return nil
	}
	if err := s.ledger.Append(postings); err != nil {
		return fmt.Errorf("post %s: %w", ev.Type, err)
	}
	return nil
}

// commission returns the agency's cut of a payment in minor units, or 0
// for direct bookings.
func (s *Service) commission(b *Booking, payment int64) int64 {
	if b.AgencyID == "" || s.tenants == nil {
		return 0
	}
	agency, err := s.tenants.GetByID(b.AgencyID)
	if err != nil {
		s.logger.Warn("agency lookup failed, skipping commission",
			slog.String("agency_id", b.AgencyID),
			slog.String("error", err.Error()),
		)
		return 0
	}
	if agency.CommissionPercent <= 0 {
		return 0
	}
	return payment * int64(agency.CommissionPercent*100) / 10000
}

// auditFailure records a rejected lifecycle attempt. The failure entry
// is best effort; the caller's typed error is what surfaces.
func (s *Service) auditFailure(ctx context.Context, bookingID, eventType string) {
	action, ok := auditActions[eventType]
	if !ok {
		return
	}
	if err := audit.LogAction(ctx, s.audit, "booking", bookingID, action, audit.OutcomeFailure); err != nil {
		s.logger.Warn("failed to audit rejected transition",
			slog.String("booking_id", bookingID),
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
	}
}
