// Package billing reconciles payment gateway webhooks into orders,
// subscriptions and the subscription summary stored on each user, and lets
// users cancel their subscription.
package billing

import (
	"context"
	"time"

	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/order"
)

// Subscription is the local record of a gateway subscription, unique by
// ExternalID.
type Subscription struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	OrderID     string     `json:"orderId"`
	ExternalID  string     `json:"subscriptionId"`
	CustomerID  string     `json:"customerId"`
	Status      string     `json:"status"`
	RenewsAt    *time.Time `json:"renewsAt"`
	EndsAt      *time.Time `json:"endsAt"`
	CancelledAt *time.Time `json:"cancelledAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type SubscriptionStore interface {
	GetSubscriptionByExternalID(ctx context.Context, externalID string) (*Subscription, error)
	// LatestSubscriptionForUser returns the most recently updated record.
	LatestSubscriptionForUser(ctx context.Context, userID string) (*Subscription, error)
	// UpsertSubscription writes s by ExternalID. UserID and OrderID are only
	// written when the record is created; later events never relink it.
	UpsertSubscription(ctx context.Context, s *Subscription) error
	MarkSubscriptionCancelled(ctx context.Context, externalID string, at time.Time) error
}

type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	FindOrderByPaymentReference(ctx context.Context, provider order.Provider, reference string) (*order.Order, error)
	LatestPaidSubscriptionOrder(ctx context.Context, userID string) (*order.Order, error)
	MarkPaid(ctx context.Context, id string, p order.Payment) (*order.Order, error)
	SetNextBillingDate(ctx context.Context, id, subscriptionID string, next *time.Time) error
}

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*account.User, error)
	SetSubscriptionSummary(ctx context.Context, userID string, s *account.SubscriptionSummary) error
}

// Transactor runs fn so that its writes are applied together or not at all.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store is everything billing needs from the record store.
type Store interface {
	OrderStore
	UserStore
	SubscriptionStore
	Transactor
}

// SignatureVerifier checks a webhook signature over the raw request body.
type SignatureVerifier interface {
	VerifySignature(raw []byte, signature string) bool
}

// SubscriptionCanceller cancels a subscription at the gateway.
type SubscriptionCanceller interface {
	CancelSubscription(ctx context.Context, subscriptionID string) error
}
