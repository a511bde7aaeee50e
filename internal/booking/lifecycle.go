package booking

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an event is not valid in the
// booking's current status.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// transitions maps an event type to the statuses it may be applied in
// and the status it moves the booking to. An empty "to" keeps the
// current status (financial events).
var transitions = map[string]struct {
	from map[string]bool
	to   string
}{
	EventHeld:        {from: set(StatusDraft), to: StatusHeld},
	EventConfirmed:   {from: set(StatusDraft, StatusHeld), to: StatusConfirmed},
	EventCheckedIn:   {from: set(StatusConfirmed), to: StatusCheckedIn},
	EventCheckedOut:  {from: set(StatusCheckedIn), to: StatusCheckedOut},
	EventCancelled:   {from: set(StatusHeld, StatusConfirmed), to: StatusCancelled},
	EventNoShow:      {from: set(StatusConfirmed), to: StatusNoShow},
	EventHoldExpired: {from: set(StatusHeld), to: StatusHoldExpired},

	EventPaymentRecorded: {from: set(StatusConfirmed, StatusCheckedIn, StatusCheckedOut)},
	EventRefundRecorded:  {from: set(StatusCancelled, StatusCheckedOut, StatusNoShow)},
}

func set(statuses ...string) map[string]bool {
	m := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}

// NextStatus validates eventType against the current status and returns
// the status the booking moves to. EventCreated is only valid at
// creation and is never applied to an existing booking.
func NextStatus(current, eventType string) (string, error) {
	if eventType == EventCreated {
		return "", fmt.Errorf("%w: %s cannot be applied to an existing booking", ErrInvalidTransition, eventType)
	}
	t, ok := transitions[eventType]
	if !ok {
		return "", fmt.Errorf("%w: unknown event type %q", ErrInvalidTransition, eventType)
	}
	if !t.from[current] {
		return "", fmt.Errorf("%w: %s not allowed in status %s", ErrInvalidTransition, eventType, current)
	}
	if t.to == "" {
		return current, nil
	}
	return t.to, nil
}

// ValidEventType reports whether s names a lifecycle event.
func ValidEventType(s string) bool {
	if s == EventCreated {
		return true
	}
	_, ok := transitions[s]
	return ok
}

// ProjectStatus replays an event log and returns the resulting status.
// Used to rebuild the denormalized head row and to detect drift.
func ProjectStatus(events []*Event) (string, error) {
	status := ""
	for i, ev := range events {
		if i == 0 {
			if ev.Type != EventCreated {
				return "", fmt.Errorf("%w: log must start with %s", ErrInvalidTransition, EventCreated)
			}
			status = StatusDraft
			continue
		}
		next, err := NextStatus(status, ev.Type)
		if err != nil {
			return "", err
		}
		status = next
	}
	if status == "" {
		return "", errors.New("empty event log")
	}
	return status, nil
}
