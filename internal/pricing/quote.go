package pricing

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidStay is returned for a zero-night or inverted stay.
	ErrInvalidStay = errors.New("stay must cover at least one night")

	// ErrInvalidOccupancy is returned for a non-positive guest count.
	ErrInvalidOccupancy = errors.New("occupancy must be positive")

	// ErrInvalidOverride is returned when an override's range is inverted.
	ErrInvalidOverride = errors.New("override date range is inverted")
)

// Stay describes the quote request.
type Stay struct {
	CheckIn   time.Time `json:"check_in"`
	CheckOut  time.Time `json:"check_out"`
	Occupancy int       `json:"occupancy"`
	Agency    bool      `json:"agency"`
}

// NightRate is one night of a quote's breakdown.
type NightRate struct {
	Date     time.Time `json:"date"`
	Rate     int64     `json:"rate"`
	Override string    `json:"override,omitempty"`
}

// Quote is the priced stay. Totals are minor units; RoomTotal is after
// the agency discount, Total includes tax.
type Quote struct {
	Nights         []NightRate `json:"nights"`
	Subtotal       int64       `json:"subtotal"`
	DiscountAmount int64       `json:"discount_amount"`
	RoomTotal      int64       `json:"room_total"`
	TaxAmount      int64       `json:"tax_amount"`
	Total          int64       `json:"total"`
	Currency       string      `json:"currency"`
}

// PriceStay prices a stay against a rate plan: per-night resolution of
// seasonal overrides, occupancy multiplier, then agency discount and tax
// on the stay total.
func (p *RatePlan) PriceStay(stay Stay) (*Quote, error) {
	checkIn := stay.CheckIn.Truncate(24 * time.Hour)
	checkOut := stay.CheckOut.Truncate(24 * time.Hour)
	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	if nights <= 0 {
		return nil, ErrInvalidStay
	}
	if stay.Occupancy <= 0 {
		return nil, ErrInvalidOccupancy
	}
	for _, o := range p.Overrides {
		if o.To.Before(o.From) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidOverride, o.Name)
		}
	}

	multiplier := 1.0
	if m, ok := p.OccupancyMultipliers[stay.Occupancy]; ok && m > 0 {
		multiplier = m
	}

	q := &Quote{Currency: p.Currency}
	for i := 0; i < nights; i++ {
		night := checkIn.AddDate(0, 0, i)
		rate := p.BaseRate
		overrideName := ""
		if o := p.resolveOverride(night); o != nil {
			rate = o.Rate
			overrideName = o.Name
		}
		rate = int64(math.Round(float64(rate) * multiplier))
		q.Nights = append(q.Nights, NightRate{Date: night, Rate: rate, Override: overrideName})
		q.Subtotal += rate
	}

	if stay.Agency && p.AgencyDiscountPercent > 0 {
		q.DiscountAmount = int64(math.Round(float64(q.Subtotal) * p.AgencyDiscountPercent / 100))
	}
	q.RoomTotal = q.Subtotal - q.DiscountAmount
	q.TaxAmount = int64(math.Round(float64(q.RoomTotal) * p.TaxPercent / 100))
	q.Total = q.RoomTotal + q.TaxAmount
	return q, nil
}

// resolveOverride picks the override covering night with the highest
// priority, breaking ties by the narrower range.
func (p *RatePlan) resolveOverride(night time.Time) *SeasonalOverride {
	var best *SeasonalOverride
	for i := range p.Overrides {
		o := &p.Overrides[i]
		if !o.Covers(night) {
			continue
		}
		if best == nil {
			best = o
			continue
		}
		if o.Priority > best.Priority {
			best = o
		} else if o.Priority == best.Priority && o.span() < best.span() {
			best = o
		}
	}
	return best
}
