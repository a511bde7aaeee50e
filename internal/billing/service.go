package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lodgeline/lodgeline/internal/audit"
	"github.com/lodgeline/lodgeline/internal/booking"
	"github.com/lodgeline/lodgeline/internal/ledger"
)

// Service assembles invoices from a booking's ledger postings and
// settles them by recording payments on the booking lifecycle.
type Service struct {
	invoices  Repository
	ledger    ledger.Repository
	bookings  booking.Repository
	lifecycle *booking.Service
	audit     audit.Repository
	logger    *slog.Logger
}

func NewService(invoices Repository, led ledger.Repository, bookings booking.Repository, lifecycle *booking.Service, aud audit.Repository, logger *slog.Logger) *Service {
	return &Service{
		invoices:  invoices,
		ledger:    led,
		bookings:  bookings,
		lifecycle: lifecycle,
		audit:     aud,
		logger:    logger,
	}
}

// BuildInvoice creates an open invoice for the booking's outstanding
// guest receivable, with lines derived from the revenue postings.
func (s *Service) BuildInvoice(ctx context.Context, tenantID, bookingID string) (*Invoice, error) {
	b, err := s.bookings.GetByID(tenantID, bookingID)
	if err != nil {
		return nil, err
	}

	postings, err := s.ledger.ByBooking(tenantID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load postings: %w", err)
	}

	lineTotals := map[string]int64{}
	var amountDue int64
	for _, p := range postings {
		signed := p.Amount
		if !p.Debit {
			signed = -signed
		}
		switch p.Account {
		case ledger.AccountGuestReceivable:
			amountDue += signed
		case ledger.AccountRoomRevenue:
			lineTotals["Room charges"] -= signed
		case ledger.AccountTaxPayable:
			lineTotals["Tax"] -= signed
		case ledger.AccountCancellationFeeRevenue:
			lineTotals["Cancellation fee"] -= signed
		}
	}
	if amountDue <= 0 {
		return nil, ErrNothingToInvoice
	}

	inv := &Invoice{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		BookingID: bookingID,
		Number:    invoiceNumber(),
		Status:    StatusOpen,
		Currency:  b.Currency,
		AmountDue: amountDue,
		CreatedAt: time.Now().UTC(),
	}
	for _, desc := range []string{"Room charges", "Tax", "Cancellation fee"} {
		if amount := lineTotals[desc]; amount != 0 {
			inv.Lines = append(inv.Lines, Line{Description: desc, Amount: amount})
			inv.Total += amount
		}
	}

	if err := s.invoices.Insert(inv); err != nil {
		return nil, fmt.Errorf("insert invoice: %w", err)
	}
	if err := audit.LogAction(ctx, s.audit, "invoice", inv.ID, "invoice_create", audit.OutcomeSuccess); err != nil {
		return nil, fmt.Errorf("audit invoice create: %w", err)
	}

	s.logger.Info("invoice created",
		slog.String("invoice_id", inv.ID),
		slog.String("booking_id", bookingID),
		slog.String("tenant_id", tenantID),
		slog.Int64("amount_due", inv.AmountDue),
	)
	return inv, nil
}

// Get returns a tenant's invoice.
func (s *Service) Get(tenantID, invoiceID string) (*Invoice, error) {
	return s.invoices.GetByID(tenantID, invoiceID)
}

// AttachCheckoutSession stores the Stripe session on an open invoice so
// the webhook can find it.
func (s *Service) AttachCheckoutSession(tenantID, invoiceID, sessionID string) error {
	inv, err := s.invoices.GetByID(tenantID, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status != StatusOpen {
		return ErrInvoiceNotOpen
	}
	inv.StripeSessionID = sessionID
	return s.invoices.Update(inv)
}

// Settle marks an open invoice settled and records the payment on the
// booking lifecycle, which appends the cash/receivable postings.
func (s *Service) Settle(ctx context.Context, tenantID, invoiceID string) (*Invoice, error) {
	inv, err := s.invoices.GetByID(tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusOpen {
		return nil, ErrInvoiceNotOpen
	}

	if _, err := s.lifecycle.Apply(ctx, tenantID, inv.BookingID, booking.EventPaymentRecorded, booking.ApplyInput{
		Amount: inv.AmountDue,
		Note:   "invoice " + inv.Number,
	}); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	now := time.Now().UTC()
	inv.Status = StatusSettled
	inv.SettledAt = &now
	if err := s.invoices.Update(inv); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	if err := audit.LogAction(ctx, s.audit, "invoice", inv.ID, "invoice_settle", audit.OutcomeSuccess); err != nil {
		return nil, fmt.Errorf("audit invoice settle: %w", err)
	}

	s.logger.Info("invoice settled",
		slog.String("invoice_id", inv.ID),
		slog.String("tenant_id", tenantID),
		slog.Int64("amount", inv.AmountDue),
	)
	return inv, nil
}

func invoiceNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%d-%s", time.Now().Year(), suffix)
}
