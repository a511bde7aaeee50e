package booking

import "time"

// Booking statuses. Status is a projection of the booking's event log.
const (
	StatusDraft       = "draft"
	StatusHeld        = "held"
	StatusConfirmed   = "confirmed"
	StatusCheckedIn   = "checked_in"
	StatusCheckedOut  = "checked_out"
	StatusCancelled   = "cancelled"
	StatusNoShow      = "no_show"
	StatusHoldExpired = "hold_expired"
)

// Lifecycle event types. payment_recorded and refund_recorded are
// financial events that leave the status unchanged.
const (
	EventCreated         = "created"
	EventHeld            = "held"
	EventConfirmed       = "confirmed"
	EventCheckedIn       = "checked_in"
	EventCheckedOut      = "checked_out"
	EventCancelled       = "cancelled"
	EventNoShow          = "no_show"
	EventHoldExpired     = "hold_expired"
	EventPaymentRecorded = "payment_recorded"
	EventRefundRecorded  = "refund_recorded"
)

// Booking is the denormalized head row. Status, money totals, and
// Version are recomputable from the event log; the row exists for cheap
// reads and for the optimistic version check on appends.
type Booking struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	AgencyID  string `json:"agency_id,omitempty"`
	RoomType  string `json:"room_type"`
	GuestName string `json:"guest_name"`

	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
	Nights   int       `json:"nights"`

	Status   string `json:"status"`
	Currency string `json:"currency"`

	// Minor units.
	RoomTotal      int64 `json:"room_total"`
	TaxAmount      int64 `json:"tax_amount"`
	PaidAmount     int64 `json:"paid_amount"`
	RefundedAmount int64 `json:"refunded_amount"`

	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`

	// Version counts accepted events. Appends carry the expected version
	// so concurrent writers cannot fork the log.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is one entry in a booking's append-only log.
type Event struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	TenantID  string    `json:"tenant_id"`
	Type      string    `json:"type"`
	ActorID   string    `json:"actor_id"`
	Seq       int       `json:"seq"`
	Amount    int64     `json:"amount,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the booking still occupies inventory.
func (b *Booking) Active() bool {
	switch b.Status {
	case StatusDraft, StatusHeld, StatusConfirmed, StatusCheckedIn:
		return true
	}
	return false
}
