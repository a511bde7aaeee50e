package ledger

import (
	"errors"
	"testing"
)

func baseAmounts() EventAmounts {
	return EventAmounts{
		TenantID:  "tenant-1",
		BookingID: "booking-1",
		EventID:   "event-1",
		Currency:  "EUR",
	}
}

func TestPostingsForEvent_Confirmed(t *testing.T) {
	a := baseAmounts()
	a.RoomTotal = 20000
	a.TaxAmount = 1800

	postings, err := PostingsForEvent(EventConfirmed, a)
	if err != nil {
		t.Fatalf("PostingsForEvent() error = %v", err)
	}
	if err := ValidatePostingSet(postings); err != nil {
		t.Fatalf("posting set unbalanced: %v", err)
	}
	if len(postings) != 3 {
		t.Fatalf("len(postings) = %d, want 3", len(postings))
	}
	if postings[0].Account != AccountGuestReceivable || !postings[0].Debit || postings[0].Amount != 21800 {
		t.Errorf("receivable posting = %+v", postings[0])
	}
	if postings[1].Account != AccountRoomRevenue || postings[1].Debit || postings[1].Amount != 20000 {
		t.Errorf("revenue posting = %+v", postings[1])
	}
	if postings[2].Account != AccountTaxPayable || postings[2].Debit || postings[2].Amount != 1800 {
		t.Errorf("tax posting = %+v", postings[2])
	}
}

func TestPostingsForEvent_ConfirmedNoTax(t *testing.T) {
	a := baseAmounts()
	a.RoomTotal = 20000

	postings, err := PostingsForEvent(EventConfirmed, a)
	if err != nil {
		t.Fatalf("PostingsForEvent() error = %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("len(postings) = %d, want 2", len(postings))
	}
	if err := ValidatePostingSet(postings); err != nil {
		t.Errorf("posting set unbalanced: %v", err)
	}
}

func TestPostingsForEvent_PaymentWithCommission(t *testing.T) {
	a := baseAmounts()
	a.PaymentAmount = 21800
	a.CommissionAmount = 2000

	postings, err := PostingsForEvent(EventPaymentRecorded, a)
	if err != nil {
		t.Fatalf("PostingsForEvent() error = %v", err)
	}
	if err := ValidatePostingSet(postings); err != nil {
		t.Fatalf("posting set unbalanced: %v", err)
	}
	if len(postings) != 4 {
		t.Fatalf("len(postings) = %d, want 4", len(postings))
	}
	if postings[2].Account != AccountCommissionExpense || !postings[2].Debit {
		t.Errorf("commission expense posting = %+v", postings[2])
	}
	if postings[3].Account != AccountCommissionPayable || postings[3].Debit {
		t.Errorf("commission payable posting = %+v", postings[3])
	}
}

func TestPostingsForEvent_CancelledWithoutFee(t *testing.T) {
	postings, err := PostingsForEvent(EventCancelled, baseAmounts())
	if err != nil {
		t.Fatalf("PostingsForEvent() error = %v", err)
	}
	if postings != nil {
		t.Errorf("free cancellation produced postings: %+v", postings)
	}
}

func TestPostingsForEvent_CancelledWithFee(t *testing.T) {
	a := baseAmounts()
	a.FeeAmount = 5000

	postings, err := PostingsForEvent(EventCancelled, a)
	if err != nil {
		t.Fatalf("PostingsForEvent() error = %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("len(postings) = %d, want 2", len(postings))
	}
	if postings[1].Account != AccountCancellationFeeRevenue {
		t.Errorf("fee posting account = %q", postings[1].Account)
	}
}

func TestPostingsForEvent_Refund(t *testing.T) {
	a := baseAmounts()
	a.RefundAmount = 10000

	postings, err := PostingsForEvent(EventRefundRecorded, a)
	if err != nil {
		t.Fatalf("PostingsForEvent() error = %v", err)
	}
	if err := ValidatePostingSet(postings); err != nil {
		t.Fatalf("posting set unbalanced: %v", err)
	}
	if len(postings) != 4 {
		t.Fatalf("len(postings) = %d, want 4", len(postings))
	}
}

func TestPostingsForEvent_NonFinancial(t *testing.T) {
	for _, eventType := range []string{"created", "held", "checked_in", "checked_out", "hold_expired"} {
		postings, err := PostingsForEvent(eventType, baseAmounts())
		if err != nil {
			t.Errorf("PostingsForEvent(%q) error = %v", eventType, err)
		}
		if postings != nil {
			t.Errorf("PostingsForEvent(%q) produced postings", eventType)
		}
	}
}

func TestPostingsForEvent_MissingAmounts(t *testing.T) {
	for _, eventType := range []string{EventConfirmed, EventPaymentRecorded, EventRefundRecorded} {
		_, err := PostingsForEvent(eventType, baseAmounts())
		if !errors.Is(err, ErrMissingAmount) {
			t.Errorf("PostingsForEvent(%q) error = %v, want ErrMissingAmount", eventType, err)
		}
	}
}
