package pricing

import (
	"testing"
	"time"
)

func TestQuoteWithActiveDiscount(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	d := &Discount{
		Percent:    20,
		ValidFrom:  now.Add(-24 * time.Hour),
		ValidUntil: now.Add(24 * time.Hour),
		Active:     true,
	}

	if got := Quote(100000, 3, d, now); got != 240000 {
		t.Errorf("Quote() = %d, want 240000", got)
	}
}

func TestQuoteExpiredDiscount(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	d := &Discount{
		Percent:    20,
		ValidFrom:  now.Add(-72 * time.Hour),
		ValidUntil: now.Add(-24 * time.Hour),
		Active:     true,
	}

	if got := Quote(100000, 3, d, now); got != 300000 {
		t.Errorf("Quote() = %d, want 300000 (discount expired)", got)
	}
}

func TestDiscountApplies(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	window := func(percent int, active bool, from, until time.Time) *Discount {
		return &Discount{Percent: percent, Active: active, ValidFrom: from, ValidUntil: until}
	}

	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	tests := []struct {
		name     string
		discount *Discount
		expected bool
	}{
		{"nil discount", nil, false},
		{"in window", window(20, true, yesterday, tomorrow), true},
		{"inactive flag", window(20, false, yesterday, tomorrow), false},
		{"before window", window(20, true, tomorrow, tomorrow.Add(time.Hour)), false},
		{"after window", window(20, true, yesterday.Add(-time.Hour), yesterday), false},
		{"zero percent", window(0, true, yesterday, tomorrow), false},
		{"hundred percent", window(100, true, yesterday, tomorrow), false},
		{"negative percent", window(-5, true, yesterday, tomorrow), false},
		{"boundary: now equals valid_until", window(20, true, yesterday, now), true},
		{"boundary: now equals valid_from", window(20, true, now, tomorrow), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.discount.Applies(now); got != tt.expected {
				t.Errorf("Applies() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUnitPriceRoundsDown(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	d := &Discount{
		Percent:    33,
		ValidFrom:  now.Add(-time.Hour),
		ValidUntil: now.Add(time.Hour),
		Active:     true,
	}

	// 999 * 67 / 100 = 669.33 -> 669 (integer cents, truncated)
	if got := UnitPrice(999, d, now); got != 669 {
		t.Errorf("UnitPrice() = %d, want 669", got)
	}
}
