package domain

import "time"

// Hold reserves quantity against a product's stock for a limited time.
// A hold is active while ExpiresAt is in the future and no order references
// it; once an order exists the hold is consumed and settlement freezes
// ExpiresAt so expiry release can never restock it.
type Hold struct {
	ID        string
	ProductID string
	Qty       int
	ExpiresAt time.Time
	Token     string
	CreatedAt time.Time
}

// Active reports whether the hold can still be converted into an order.
func (h Hold) Active(now time.Time) bool {
	return h.ExpiresAt.After(now)
}
