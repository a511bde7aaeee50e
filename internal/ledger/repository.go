package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnbalanced is returned when a posting set's debits and credits
	// do not sum to the same amount.
	ErrUnbalanced = errors.New("posting set is not balanced")

	// ErrEmptyPostingSet is returned when an append carries no postings.
	ErrEmptyPostingSet = errors.New("posting set is empty")

	// ErrInvalidAccount is returned for an account outside the ledger's
	// chart of accounts.
	ErrInvalidAccount = errors.New("invalid account")

	// ErrInvalidAmount is returned for a zero or negative posting amount.
	ErrInvalidAmount = errors.New("posting amount must be positive")

	// ErrMixedCurrency is returned when postings in one set carry
	// different currency codes.
	ErrMixedCurrency = errors.New("posting set mixes currencies")
)

// Repository stores balanced posting sets and answers balance queries.
type Repository interface {
	// Append validates and stores a balanced posting set atomically.
	Append(postings []*Posting) error

	// ByBooking returns all postings for a booking in insertion order.
	ByBooking(tenantID, bookingID string) ([]*Posting, error)

	// AccountBalance returns the net debit balance of one account for a
	// tenant.
	AccountBalance(tenantID, account string) (int64, error)

	// TrialBalance returns the net position of every account that has
	// postings for the tenant. The sum of all nets is zero whenever every
	// append was balanced.
	TrialBalance(tenantID string) ([]Balance, error)
}

// ValidatePostingSet checks that a posting set is non-empty, uses only
// known accounts, carries positive amounts in a single currency, and
// balances debits against credits.
func ValidatePostingSet(postings []*Posting) error {
	if len(postings) == 0 {
		return ErrEmptyPostingSet
	}
	currency := postings[0].Currency
	var debits, credits int64
	for _, p := range postings {
		if !ValidAccounts[p.Account] {
			return fmt.Errorf("%w: %s", ErrInvalidAccount, p.Account)
		}
		if p.Amount <= 0 {
			return ErrInvalidAmount
		}
		if p.Currency != currency {
			return ErrMixedCurrency
		}
		if p.Debit {
			debits += p.Amount
		} else {
			credits += p.Amount
		}
	}
	if debits != credits {
		return fmt.Errorf("%w: debits %d != credits %d", ErrUnbalanced, debits, credits)
	}
	return nil
}

// InMemoryRepository keeps postings in memory. Used in tests and local
// development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	postings []*Posting
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

func (r *InMemoryRepository) Append(postings []*Posting) error {
	if err := ValidatePostingSet(postings); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, p := range postings {
		stored := *p
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		r.postings = append(r.postings, &stored)
	}
	return nil
}

func (r *InMemoryRepository) ByBooking(tenantID, bookingID string) ([]*Posting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Posting
	for _, p := range r.postings {
		if p.TenantID == tenantID && p.BookingID == bookingID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) AccountBalance(tenantID, account string) (int64, error) {
	if !ValidAccounts[account] {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAccount, account)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var net int64
	for _, p := range r.postings {
		if p.TenantID != tenantID || p.Account != account {
			continue
		}
		if p.Debit {
			net += p.Amount
		} else {
			net -= p.Amount
		}
	}
	return net, nil
}

func (r *InMemoryRepository) TrialBalance(tenantID string) ([]Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nets := make(map[string]int64)
	for _, p := range r.postings {
		if p.TenantID != tenantID {
			continue
		}
		if p.Debit {
			nets[p.Account] += p.Amount
		} else {
			nets[p.Account] -= p.Amount
		}
	}

	accounts := make([]string, 0, len(nets))
	for account := range nets {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	out := make([]Balance, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, Balance{Account: account, Net: nets[account]})
	}
	return out, nil
}
