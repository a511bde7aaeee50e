// Package billing assembles invoices from ledger postings and settles
// them through Stripe Checkout.
package billing

import (
	"errors"
	"time"
)

// Invoice statuses.
const (
	StatusOpen    = "open"
	StatusSettled = "settled"
	StatusVoid    = "void"
)

var (
	// ErrInvoiceNotFound is returned when the invoice does not exist for
	// the tenant.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvoiceNotOpen is returned when settling or voiding an invoice
	// that is not open.
	ErrInvoiceNotOpen = errors.New("invoice is not open")

	// ErrNothingToInvoice is returned when the booking has no charges to
	// bill.
	ErrNothingToInvoice = errors.New("booking has no outstanding charges")
)

// Line is one invoice line, derived from a ledger posting group.
type Line struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

// Invoice bills a booking's outstanding charges. AmountDue is the
// booking's guest receivable at assembly time, in minor units.
type Invoice struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	BookingID string `json:"booking_id"`
	Number    string `json:"number"`
	Status    string `json:"status"`
	Currency  string `json:"currency"`

	Lines     []Line `json:"lines"`
	Total     int64  `json:"total"`
	AmountDue int64  `json:"amount_due"`

	StripeSessionID string `json:"stripe_session_id,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}
