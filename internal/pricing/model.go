package pricing

import "time"

// RatePlan defines how a tenant prices one room type. BaseRate is the
// nightly rate in minor units; overrides and multipliers adjust it per
// night before discount and tax.
type RatePlan struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	RoomType string `json:"room_type"`

	BaseRate int64  `json:"base_rate"`
	Currency string `json:"currency"`

	TaxPercent            float64 `json:"tax_percent"`
	AgencyDiscountPercent float64 `json:"agency_discount_percent"`

	// OccupancyMultipliers scale the nightly rate by guest count. A
	// missing occupancy uses 1.0.
	OccupancyMultipliers map[int]float64 `json:"occupancy_multipliers,omitempty"`

	Overrides []SeasonalOverride `json:"overrides,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SeasonalOverride replaces the base rate for nights inside its date
// range. From and To are inclusive dates. When ranges overlap, the
// highest priority wins; on a tie the narrower range wins.
type SeasonalOverride struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Rate     int64     `json:"rate"`
	Priority int       `json:"priority"`
}

// Covers reports whether night falls inside the override's range.
func (o SeasonalOverride) Covers(night time.Time) bool {
	day := night.Truncate(24 * time.Hour)
	return !day.Before(o.From.Truncate(24*time.Hour)) && !day.After(o.To.Truncate(24*time.Hour))
}

// span returns the override's width in days, for specificity tiebreaks.
func (o SeasonalOverride) span() int {
	return int(o.To.Sub(o.From).Hours()/24) + 1
}
