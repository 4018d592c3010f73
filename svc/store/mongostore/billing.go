package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/storefront/svc/billing"
)

type subscriptionDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	UserID      string        `bson:"user_id"`
	OrderID     string        `bson:"order_id"`
	ExternalID  string        `bson:"external_id"`
	CustomerID  string        `bson:"customer_id"`
	Status      string        `bson:"status"`
	RenewsAt    *time.Time    `bson:"renews_at"`
	EndsAt      *time.Time    `bson:"ends_at"`
	CancelledAt *time.Time    `bson:"cancelled_at"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

func (d subscriptionDoc) toSubscription() *billing.Subscription {
	return &billing.Subscription{
		ID:          d.ID.Hex(),
		UserID:      d.UserID,
		OrderID:     d.OrderID,
		ExternalID:  d.ExternalID,
		CustomerID:  d.CustomerID,
		Status:      d.Status,
		RenewsAt:    d.RenewsAt,
		EndsAt:      d.EndsAt,
		CancelledAt: d.CancelledAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (s *Store) GetSubscriptionByExternalID(ctx context.Context, externalID string) (*billing.Subscription, error) {
	return s.findSubscription(ctx, bson.M{"external_id": externalID})
}

func (s *Store) LatestSubscriptionForUser(ctx context.Context, userID string) (*billing.Subscription, error) {
	return s.findSubscription(ctx, bson.M{"user_id": userID})
}

// UpsertSubscription keys the record by external id. The user and order links
// are only written on insert.
func (s *Store) UpsertSubscription(ctx context.Context, sub *billing.Subscription) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"customer_id":  sub.CustomerID,
			"status":       sub.Status,
			"renews_at":    sub.RenewsAt,
			"ends_at":      sub.EndsAt,
			"cancelled_at": sub.CancelledAt,
			"updated_at":   now,
		},
		"$setOnInsert": bson.M{
			"user_id":    sub.UserID,
			"order_id":   sub.OrderID,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var d subscriptionDoc
	if err := s.subscriptions.FindOneAndUpdate(ctx, bson.M{"external_id": sub.ExternalID}, update, opts).Decode(&d); err != nil {
		return err
	}
	*sub = *d.toSubscription()
	return nil
}

func (s *Store) MarkSubscriptionCancelled(ctx context.Context, externalID string, at time.Time) error {
	res, err := s.subscriptions.UpdateOne(ctx, bson.M{"external_id": externalID}, bson.M{"$set": bson.M{
		"status":       billing.StatusCancelled,
		"cancelled_at": at,
		"updated_at":   time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return billing.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) findSubscription(ctx context.Context, filter bson.M) (*billing.Subscription, error) {
	var d subscriptionDoc
	if err := s.subscriptions.FindOne(ctx, filter, options.FindOne().SetSort(newestUpdated)).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return nil, billing.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return d.toSubscription(), nil
}
