package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/storefront/svc/catalog"
)

type productDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Slug      string        `bson:"slug"`
	Name      string        `bson:"name"`
	Price     float64       `bson:"price"`
	Active    bool          `bson:"active"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func (d productDoc) toProduct() *catalog.Product {
	return &catalog.Product{
		ID:        d.ID.Hex(),
		Slug:      d.Slug,
		Name:      d.Name,
		Price:     d.Price,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (s *Store) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	var d productDoc
	if err := s.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, err
	}
	return d.toProduct(), nil
}

func (s *Store) UpsertProductBySlug(ctx context.Context, p *catalog.Product) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"name":       p.Name,
			"price":      p.Price,
			"active":     p.Active,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var d productDoc
	if err := s.products.FindOneAndUpdate(ctx, bson.M{"slug": p.Slug}, update, opts).Decode(&d); err != nil {
		return err
	}
	*p = *d.toProduct()
	return nil
}
