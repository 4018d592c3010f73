package catalog

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidSeed     = errors.New("invalid product seed")
)
