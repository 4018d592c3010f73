package memstore

import (
	"context"

	"github.com/dmitrymomot/storefront/svc/catalog"
)

func (s *Store) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	p := e.v
	return &p, nil
}

func (s *Store) UpsertProductBySlug(ctx context.Context, p *catalog.Product) error {
	return s.write(ctx, func() error {
		now := s.now().UTC()
		for id, e := range s.products {
			if e.v.Slug != p.Slug {
				continue
			}
			e.v.Name, e.v.Price, e.v.Active, e.v.UpdatedAt = p.Name, p.Price, p.Active, now
			s.products[id] = entry[catalog.Product]{v: e.v, rev: s.nextRev()}
			*p = e.v
			return nil
		}

		p.ID = newID()
		p.CreatedAt, p.UpdatedAt = now, now
		s.products[p.ID] = entry[catalog.Product]{v: *p, rev: s.nextRev()}
		return nil
	})
}

// ProductCount returns the number of stored products.
func (s *Store) ProductCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}
