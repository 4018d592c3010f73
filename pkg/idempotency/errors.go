package idempotency

import "errors"

var (
	ErrEmptyKey      = errors.New("idempotency: empty key")
	ErrStoreFailure  = errors.New("idempotency: store operation failed")
	ErrKeyNotFound   = errors.New("idempotency: key not found")
	ErrInvalidRecord = errors.New("idempotency: invalid record")
)
