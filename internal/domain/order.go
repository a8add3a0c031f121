package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a purchase derived from a hold. At most one order exists per
// hold. TotalCents captures price x qty at creation time and never changes
// afterwards, even if the product price does.
type Order struct {
	ID         string
	HoldID     string
	Status     OrderStatus
	TotalCents int64
	CreatedAt  time.Time
}
