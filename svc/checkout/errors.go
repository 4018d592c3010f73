package checkout

import "errors"

var (
	ErrOrderTypeMismatch = errors.New("order type does not match checkout")
	ErrOrderNotPending   = errors.New("order is no longer pending")
	ErrForbidden         = errors.New("order belongs to another user")
	ErrNotConfigured     = errors.New("checkout variant is not configured")
	ErrInvalidAmount     = errors.New("order total must be greater than zero")
	ErrGatewayFailure    = errors.New("payment gateway request failed")
	ErrNoCheckoutURL     = errors.New("payment gateway returned no checkout url")
	ErrMissingOrderID    = errors.New("order id is required")
)
