// Package mongostore implements the record stores of the storefront services
// on MongoDB. Conditional updates (payment guard, owner assignment, status
// checks) are expressed in the update filter so they hold under concurrency.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongox "github.com/dmitrymomot/storefront/pkg/mongo"
	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/billing"
	"github.com/dmitrymomot/storefront/svc/catalog"
	"github.com/dmitrymomot/storefront/svc/order"
)

const (
	productsCollection      = "products"
	usersCollection         = "users"
	ordersCollection        = "orders"
	subscriptionsCollection = "subscriptions"
)

type Store struct {
	client        *mongo.Client
	products      *mongo.Collection
	users         *mongo.Collection
	orders        *mongo.Collection
	subscriptions *mongo.Collection
	transactions  bool
}

var (
	_ catalog.Store = (*Store)(nil)
	_ account.Store = (*Store)(nil)
	_ order.Store   = (*Store)(nil)
	_ billing.Store = (*Store)(nil)
)

// New opens the collections of cfg.Database and makes sure their indexes
// exist.
func New(ctx context.Context, client *mongo.Client, cfg mongox.Config) (*Store, error) {
	db := client.Database(cfg.Database)
	s := &Store{
		client:        client,
		products:      db.Collection(productsCollection),
		users:         db.Collection(usersCollection),
		orders:        db.Collection(ordersCollection),
		subscriptions: db.Collection(subscriptionsCollection),
		transactions:  cfg.Transactions,
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	unique := func(keys bson.D) mongo.IndexModel {
		return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
	}
	nonEmpty := func(field string) bson.M {
		return bson.M{field: bson.M{"$type": "string", "$gt": ""}}
	}

	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.products: {
			unique(bson.D{{Key: "slug", Value: 1}}),
		},
		s.users: {
			unique(bson.D{{Key: "subject", Value: 1}}),
			unique(bson.D{{Key: "email", Value: 1}}),
			{
				Keys:    bson.D{{Key: "phone", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(nonEmpty("phone")),
			},
		},
		s.orders: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "payment_provider", Value: 1}, {Key: "payment_reference", Value: 1}}},
		},
		s.subscriptions: {
			unique(bson.D{{Key: "external_id", Value: 1}}),
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// RunInTx runs fn in a multi-document transaction when transactions are
// enabled, and directly otherwise. A call inside a running transaction joins
// it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transactions || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	return mongox.RunInTx(ctx, s.client, fn)
}

// Healthcheck pings the primary.
func (s *Store) Healthcheck(ctx context.Context) error {
	return mongox.Healthcheck(s.client)(ctx)
}

func objectID(hex string) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(hex)
	return id, err == nil
}

// exists reports whether a document with id is in coll. It is used to tell a
// missing record from a failed condition after an update matched nothing.
func exists(ctx context.Context, coll *mongo.Collection, id bson.ObjectID) (bool, error) {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

var newestUpdated = bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}
