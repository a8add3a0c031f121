package domain

import "time"

// Product is the authoritative inventory record. Stock is on-hand quantity;
// it only moves downward when an order is created and upward when a paid-for
// order is cancelled.
type Product struct {
	ID         string
	Name       string
	PriceCents int64
	Stock      int
	CreatedAt  time.Time
}

// ProductView is a Product together with its computed availability
// (on-hand stock minus active, unconsumed holds).
type ProductView struct {
	Product
	AvailableStock int
}
