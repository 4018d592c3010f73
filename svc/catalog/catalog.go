// Package catalog serves product prices to checkout and loads the product
// seed file. Search and filtering of the catalog live outside this service.
package catalog

import (
	"context"
	"time"
)

// Product is the slice of a catalog entry that pricing depends on.
type Product struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	// UpsertProductBySlug inserts p or replaces name, price and active flag of
	// the product with the same slug. p.ID is set to the stored id.
	UpsertProductBySlug(ctx context.Context, p *Product) error
}
