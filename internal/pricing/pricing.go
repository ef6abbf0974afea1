package pricing

import "time"

// Discount is a percentage price reduction bounded by a validity window.
// Active mirrors the stored flag on the listing; it is recomputed every time
// the listing is persisted, so a stale flag can only widen the window until
// the next write, never past ValidUntil (the window check below still applies).
type Discount struct {
	Percent    int       `json:"percent"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
	Active     bool      `json:"active"`
}

// Applies reports whether the discount is in effect at the given instant.
func (d *Discount) Applies(now time.Time) bool {
	if d == nil || !d.Active {
		return false
	}
	// Ignore 0/100 and bad data outright, same guard as at checkout.
	if d.Percent <= 0 || d.Percent >= 100 {
		return false
	}
	if now.Before(d.ValidFrom) || now.After(d.ValidUntil) {
		return false
	}
	return true
}

// UnitPrice returns the effective unit price in cents for one unit at the
// given instant. The base price is returned unchanged when no discount applies.
func UnitPrice(basePriceCents int64, d *Discount, now time.Time) int64 {
	if !d.Applies(now) {
		return basePriceCents
	}
	return basePriceCents * int64(100-d.Percent) / 100
}

// Quote computes the total price in cents for quantity units.
func Quote(basePriceCents int64, quantity int, d *Discount, now time.Time) int64 {
	return UnitPrice(basePriceCents, d, now) * int64(quantity)
}
