package ratelimiter

import "errors"

var (
	ErrInvalidConfig    = errors.New("invalid rate limiter configuration")
	ErrStoreUnavailable = errors.New("rate limiter store unavailable")
)
