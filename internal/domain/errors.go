package domain

import "errors"

var (
	ErrProductNotFound        = errors.New("product not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidID              = errors.New("invalid id")
	ErrHoldNotFound           = errors.New("hold not found")
	ErrHoldExpired            = errors.New("hold expired")
	ErrDuplicateOrder         = errors.New("order already created for this hold")
	ErrLockBusy               = errors.New("hold is being processed")
	ErrOrderNotFound          = errors.New("order not found")
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	ErrMissingFields          = errors.New("missing order id or outcome")
	ErrProductNameRequired    = errors.New("product name required")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrInvalidStock           = errors.New("invalid stock")
	ErrCacheMiss              = errors.New("counter cache miss")
)
