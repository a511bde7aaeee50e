package pricing

import (
	"errors"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func basePlan() *RatePlan {
	return &RatePlan{
		TenantID:   "t1",
		RoomType:   "double",
		BaseRate:   10000,
		Currency:   "EUR",
		TaxPercent: 9,
	}
}

func TestPriceStay_BaseRate(t *testing.T) {
	q, err := basePlan().PriceStay(Stay{
		CheckIn:   day(2026, 9, 10),
		CheckOut:  day(2026, 9, 13),
		Occupancy: 2,
	})
	if err != nil {
		t.Fatalf("PriceStay() error = %v", err)
	}
	if len(q.Nights) != 3 {
		t.Fatalf("nights = %d, want 3", len(q.Nights))
	}
	if q.Subtotal != 30000 {
		t.Errorf("Subtotal = %d, want 30000", q.Subtotal)
	}
	if q.TaxAmount != 2700 {
		t.Errorf("TaxAmount = %d, want 2700", q.TaxAmount)
	}
	if q.Total != 32700 {
		t.Errorf("Total = %d, want 32700", q.Total)
	}
	if q.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", q.Currency)
	}
}

func TestPriceStay_SeasonalOverride(t *testing.T) {
	p := basePlan()
	p.Overrides = []SeasonalOverride{
		{Name: "summer", From: day(2026, 6, 1), To: day(2026, 9, 11), Rate: 15000},
	}

	q, err := p.PriceStay(Stay{
		CheckIn:   day(2026, 9, 10),
		CheckOut:  day(2026, 9, 13),
		Occupancy: 2,
	})
	if err != nil {
		t.Fatalf("PriceStay() error = %v", err)
	}
	// Nights of 10th and 11th are in season, 12th is not.
	want := []int64{15000, 15000, 10000}
	for i, n := range q.Nights {
		if n.Rate != want[i] {
			t.Errorf("night %d rate = %d, want %d", i, n.Rate, want[i])
		}
	}
	if q.Nights[0].Override != "summer" {
		t.Errorf("night 0 override = %q, want summer", q.Nights[0].Override)
	}
	if q.Nights[2].Override != "" {
		t.Errorf("night 2 override = %q, want empty", q.Nights[2].Override)
	}
}

func TestPriceStay_OverridePriority(t *testing.T) {
	p := basePlan()
	p.Overrides = []SeasonalOverride{
		{Name: "summer", From: day(2026, 6, 1), To: day(2026, 9, 30), Rate: 15000},
		{Name: "festival", From: day(2026, 9, 10), To: day(2026, 9, 11), Rate: 25000, Priority: 1},
	}

	q, err := p.PriceStay(Stay{
		CheckIn:   day(2026, 9, 10),
		CheckOut:  day(2026, 9, 11),
		Occupancy: 2,
	})
	if err != nil {
		t.Fatalf("PriceStay() error = %v", err)
	}
	if q.Nights[0].Rate != 25000 || q.Nights[0].Override != "festival" {
		t.Errorf("night = %+v, want festival at 25000", q.Nights[0])
	}
}

func TestPriceStay_SamePriorityNarrowerWins(t *testing.T) {
	p := basePlan()
	p.Overrides = []SeasonalOverride{
		{Name: "season", From: day(2026, 6, 1), To: day(2026, 9, 30), Rate: 15000},
		{Name: "weekend", From: day(2026, 9, 12), To: day(2026, 9, 13), Rate: 18000},
	}

	q, err := p.PriceStay(Stay{
		CheckIn:   day(2026, 9, 12),
		CheckOut:  day(2026, 9, 13),
		Occupancy: 2,
	})
	if err != nil {
		t.Fatalf("PriceStay() error = %v", err)
	}
	if q.Nights[0].Override != "weekend" {
		t.Errorf("override = %q, want weekend", q.Nights[0].Override)
	}
}

func TestPriceStay_OccupancyMultiplier(t *testing.T) {
	p := basePlan()
	p.OccupancyMultipliers = map[int]float64{1: 0.8, 3: 1.25}

	q, err := p.PriceStay(Stay{
		CheckIn:   day(2026, 9, 10),
		CheckOut:  day(2026, 9, 11),
		Occupancy: 3,
	})
	if err != nil {
		t.Fatalf("PriceStay() error = %v", err)
	}
	if q.Subtotal != 12500 {
		t.Errorf("Subtotal = %d, want 12500", q.Subtotal)
	}

	// Unlisted occupancy falls back to the plain rate.
	q, err = p.PriceStay(Stay{
		CheckIn:   day(2026, 9, 10),
		CheckOut:  day(2026, 9, 11),
		Occupancy: 2,
	})
	if err != nil {
		t.Fatalf("PriceStay() error = %v", err)
	}
	if q.Subtotal != 10000 {
		t.Errorf("Subtotal = %d, want 10000", q.Subtotal)
	}
}

func TestPriceStay_AgencyDiscount(t *testing.T) {
	p := basePlan()
	p.AgencyDiscountPercent = 10

	q, err := p.PriceStay(Stay{
		CheckIn:   day(2026, 9, 10),
		CheckOut:  day(2026, 9, 12),
		Occupancy: 2,
		Agency:    true,
	})
	if err != nil {
		t.Fatalf("PriceStay() error = %v", err)
	}
	if q.DiscountAmount != 2000 {
		t.Errorf("DiscountAmount = %d, want 2000", q.DiscountAmount)
	}
	if q.RoomTotal != 18000 {
		t.Errorf("RoomTotal = %d, want 18000", q.RoomTotal)
	}
	if q.TaxAmount != 1620 {
		t.Errorf("TaxAmount = %d, want 1620", q.TaxAmount)
	}

	// Direct bookings pay full rate.
	q, err = p.PriceStay(Stay{
		CheckIn:   day(2026, 9, 10),
		CheckOut:  day(2026, 9, 12),
		Occupancy: 2,
	})
	if err != nil {
		t.Fatalf("PriceStay() error = %v", err)
	}
	if q.DiscountAmount != 0 {
		t.Errorf("DiscountAmount = %d, want 0", q.DiscountAmount)
	}
}

func TestPriceStay_InvalidStay(t *testing.T) {
	p := basePlan()

	_, err := p.PriceStay(Stay{CheckIn: day(2026, 9, 10), CheckOut: day(2026, 9, 10), Occupancy: 2})
	if !errors.Is(err, ErrInvalidStay) {
		t.Errorf("zero nights error = %v, want ErrInvalidStay", err)
	}

	_, err = p.PriceStay(Stay{CheckIn: day(2026, 9, 12), CheckOut: day(2026, 9, 10), Occupancy: 2})
	if !errors.Is(err, ErrInvalidStay) {
		t.Errorf("inverted stay error = %v, want ErrInvalidStay", err)
	}

	_, err = p.PriceStay(Stay{CheckIn: day(2026, 9, 10), CheckOut: day(2026, 9, 11)})
	if !errors.Is(err, ErrInvalidOccupancy) {
		t.Errorf("zero occupancy error = %v, want ErrInvalidOccupancy", err)
	}
}

func TestPriceStay_InvertedOverride(t *testing.T) {
	p := basePlan()
	p.Overrides = []SeasonalOverride{
		{Name: "broken", From: day(2026, 9, 20), To: day(2026, 9, 10), Rate: 15000},
	}

	_, err := p.PriceStay(Stay{CheckIn: day(2026, 9, 10), CheckOut: day(2026, 9, 11), Occupancy: 2})
	if !errors.Is(err, ErrInvalidOverride) {
		t.Errorf("PriceStay() error = %v, want ErrInvalidOverride", err)
	}
}

func TestInMemoryRepository_UpsertAndGet(t *testing.T) {
	repo := NewInMemoryRepository()

	p := basePlan()
	if err := repo.Upsert(p); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if p.ID == "" {
		t.Error("Upsert() did not assign an ID")
	}

	got, err := repo.Get("t1", "double")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.BaseRate != 10000 {
		t.Errorf("BaseRate = %d, want 10000", got.BaseRate)
	}

	// Upsert replaces the plan but keeps its identity.
	p2 := basePlan()
	p2.BaseRate = 12000
	if err := repo.Upsert(p2); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if p2.ID != p.ID {
		t.Errorf("second Upsert ID = %q, want %q", p2.ID, p.ID)
	}
	got, err = repo.Get("t1", "double")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.BaseRate != 12000 {
		t.Errorf("BaseRate after upsert = %d, want 12000", got.BaseRate)
	}

	if _, err := repo.Get("t1", "suite"); !errors.Is(err, ErrRatePlanNotFound) {
		t.Errorf("Get() missing plan error = %v, want ErrRatePlanNotFound", err)
	}
}
