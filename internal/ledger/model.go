package ledger

import "time"

// Account names for the double-entry ledger. Every posting debits or
// credits exactly one of these.
const (
	AccountCash                   = "cash"
	AccountGuestReceivable        = "guest_receivable"
	AccountRoomRevenue            = "room_revenue"
	AccountCancellationFeeRevenue = "cancellation_fee_revenue"
	AccountRefundsPayable         = "refunds_payable"
	AccountTaxPayable             = "tax_payable"
	AccountCommissionExpense      = "commission_expense"
	AccountCommissionPayable      = "commission_payable"
)

// ValidAccounts is the closed set of ledger accounts.
var ValidAccounts = map[string]bool{
	AccountCash:                   true,
	AccountGuestReceivable:        true,
	AccountRoomRevenue:            true,
	AccountCancellationFeeRevenue: true,
	AccountRefundsPayable:         true,
	AccountTaxPayable:             true,
	AccountCommissionExpense:      true,
	AccountCommissionPayable:      true,
}

// Posting is a single debit or credit line. Amounts are minor units
// (cents, kuruş) and always positive; the side is carried by Debit.
type Posting struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	BookingID string    `json:"booking_id"`
	EventID   string    `json:"event_id"`
	Account   string    `json:"account"`
	Debit     bool      `json:"debit"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// Balance is the net position of a single account. Debits increase the
// balance, credits decrease it.
type Balance struct {
	Account string `json:"account"`
	Net     int64  `json:"net"`
}
