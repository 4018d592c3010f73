package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/storefront/pkg/logger"
)

type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, log: log.With(logger.Component("catalog"))}
}

// GetProduct returns an active product. Inactive products are reported as
// not found so they cannot be ordered.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrProductNotFound
	}
	return p, nil
}

type seedProduct struct {
	Slug   string  `yaml:"slug"`
	Name   string  `yaml:"name"`
	Price  float64 `yaml:"price"`
	Active *bool   `yaml:"active"`
}

type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

// Seed upserts every product of a YAML document by slug and returns how many
// products were written. Products are active unless the seed says otherwise.
//
//	products:
//	  - slug: omega-3
//	    name: Omega-3 Fish Oil
//	    price: 24.90
func (s *Service) Seed(ctx context.Context, r io.Reader) (int, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, errors.Join(ErrInvalidSeed, err)
	}

	seen := make(map[string]struct{}, len(f.Products))
	for i, sp := range f.Products {
		sp.Slug = strings.TrimSpace(sp.Slug)
		if sp.Slug == "" || strings.TrimSpace(sp.Name) == "" {
			return 0, fmt.Errorf("%w: product %d needs a slug and a name", ErrInvalidSeed, i)
		}
		if sp.Price <= 0 {
			return 0, fmt.Errorf("%w: product %q has a non-positive price", ErrInvalidSeed, sp.Slug)
		}
		if _, dup := seen[sp.Slug]; dup {
			return 0, fmt.Errorf("%w: duplicate slug %q", ErrInvalidSeed, sp.Slug)
		}
		seen[sp.Slug] = struct{}{}
	}

	for _, sp := range f.Products {
		active := true
		if sp.Active != nil {
			active = *sp.Active
		}
		p := &Product{
			Slug:   strings.TrimSpace(sp.Slug),
			Name:   strings.TrimSpace(sp.Name),
			Price:  sp.Price,
			Active: active,
		}
		if err := s.store.UpsertProductBySlug(ctx, p); err != nil {
			return 0, fmt.Errorf("seed product %q: %w", p.Slug, err)
		}
	}

	s.log.InfoContext(ctx, "catalog seeded", slog.Int("products", len(f.Products)))
	return len(f.Products), nil
}
