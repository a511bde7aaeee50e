package billing

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEventAlreadyProcessed is returned when a webhook event was already
// recorded. Stripe retries deliveries, so handlers must treat this as a
// successful no-op.
var ErrEventAlreadyProcessed = errors.New("webhook event already processed")

// WebhookEvent is a processed Stripe event, kept for deduplication.
type WebhookEvent struct {
	ID          string
	EventID     string
	EventType   string
	ProcessedAt time.Time
}

// WebhookRepository tracks processed webhook events.
type WebhookRepository interface {
	// RecordEvent marks an event as processed. Returns
	// ErrEventAlreadyProcessed on duplicates.
	RecordEvent(eventID, eventType string) error

	// HasProcessed reports whether an event was already recorded.
	HasProcessed(eventID string) (bool, error)
}

// InMemoryWebhookRepository implements WebhookRepository in memory.
type InMemoryWebhookRepository struct {
	mu     sync.RWMutex
	events map[string]*WebhookEvent
}

func NewInMemoryWebhookRepository() *InMemoryWebhookRepository {
	return &InMemoryWebhookRepository{events: make(map[string]*WebhookEvent)}
}

func (r *InMemoryWebhookRepository) RecordEvent(eventID, eventType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.events[eventID]; exists {
		return ErrEventAlreadyProcessed
	}
	r.events[eventID] = &WebhookEvent{
		ID:          uuid.NewString(),
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	return nil
}

func (r *InMemoryWebhookRepository) HasProcessed(eventID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.events[eventID]
	return exists, nil
}
