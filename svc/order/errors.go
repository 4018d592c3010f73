package order

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrOwnerRequired     = errors.New("order needs a user or a guest id")
	ErrOrderNotPending   = errors.New("order is not pending")
	ErrOrderOwnedByOther = errors.New("order belongs to another user")
	ErrPaymentMismatch   = errors.New("payment does not match order")
	ErrDuplicateRequest  = errors.New("request with this idempotency key is in progress")
)
