package ledger

import (
	"errors"
	"fmt"
)

// Financial event types that produce postings. Other lifecycle events
// (held, checked_in, ...) have no ledger effect.
const (
	EventConfirmed       = "confirmed"
	EventPaymentRecorded = "payment_recorded"
	EventCancelled       = "cancelled"
	EventNoShow          = "no_show"
	EventRefundRecorded  = "refund_recorded"
)

// ErrMissingAmount is returned when a financial event lacks the amount
// its posting rule needs.
var ErrMissingAmount = errors.New("missing amount for financial event")

// EventAmounts carries the monetary figures of a single booking event.
// Only the fields relevant to the event type need to be set.
type EventAmounts struct {
	TenantID  string
	BookingID string
	EventID   string
	Currency  string

	// RoomTotal and TaxAmount apply to confirmed.
	RoomTotal int64
	TaxAmount int64

	// PaymentAmount and CommissionAmount apply to payment_recorded.
	// Commission is the agency's cut, accrued as an expense and a payable.
	PaymentAmount    int64
	CommissionAmount int64

	// FeeAmount applies to cancelled and no_show.
	FeeAmount int64

	// RefundAmount applies to refund_recorded.
	RefundAmount int64
}

// PostingsForEvent maps a lifecycle event to its balanced posting set.
// Non-financial events return (nil, nil). Financial events with a zero
// amount also return (nil, nil) where the rule allows it (a cancellation
// without a fee is free).
func PostingsForEvent(eventType string, a EventAmounts) ([]*Posting, error) {
	switch eventType {
	case EventConfirmed:
		if a.RoomTotal <= 0 {
			return nil, fmt.Errorf("%w: room total for %s", ErrMissingAmount, eventType)
		}
		postings := []*Posting{
			a.posting(AccountGuestReceivable, true, a.RoomTotal+a.TaxAmount),
			a.posting(AccountRoomRevenue, false, a.RoomTotal),
		}
		if a.TaxAmount > 0 {
			postings = append(postings, a.posting(AccountTaxPayable, false, a.TaxAmount))
		}
		return postings, nil

	case EventPaymentRecorded:
		if a.PaymentAmount <= 0 {
			return nil, fmt.Errorf("%w: payment amount for %s", ErrMissingAmount, eventType)
		}
		postings := []*Posting{
			a.posting(AccountCash, true, a.PaymentAmount),
			a.posting(AccountGuestReceivable, false, a.PaymentAmount),
		}
		if a.CommissionAmount > 0 {
			postings = append(postings,
				a.posting(AccountCommissionExpense, true, a.CommissionAmount),
				a.posting(AccountCommissionPayable, false, a.CommissionAmount),
			)
		}
		return postings, nil

	case EventCancelled, EventNoShow:
		if a.FeeAmount <= 0 {
			return nil, nil
		}
		return []*Posting{
			a.posting(AccountGuestReceivable, true, a.FeeAmount),
			a.posting(AccountCancellationFeeRevenue, false, a.FeeAmount),
		}, nil

	case EventRefundRecorded:
		if a.RefundAmount <= 0 {
			return nil, fmt.Errorf("%w: refund amount for %s", ErrMissingAmount, eventType)
		}
		// Reverse the revenue through refunds_payable, then settle the
		// payable from cash. The payable nets to zero within the set but
		// keeps the two movements distinguishable in the ledger.
		return []*Posting{
			a.posting(AccountRoomRevenue, true, a.RefundAmount),
			a.posting(AccountRefundsPayable, false, a.RefundAmount),
			a.posting(AccountRefundsPayable, true, a.RefundAmount),
			a.posting(AccountCash, false, a.RefundAmount),
		}, nil

	default:
		return nil, nil
	}
}

func (a EventAmounts) posting(account string, debit bool, amount int64) *Posting {
	return &Posting{
		TenantID:  a.TenantID,
		BookingID: a.BookingID,
		EventID:   a.EventID,
		Account:   account,
		Debit:     debit,
		Amount:    amount,
		Currency:  a.Currency,
	}
}
