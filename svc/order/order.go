// Package order creates checkout orders from a cart snapshot and serves
// order lookups. Payment state on an order is only advanced by the billing
// webhook reconciler through the guarded store methods declared here.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/storefront/pkg/statemachine"
)

type Type string

const (
	TypeOneTime      Type = "one_time"
	TypeSubscription Type = "subscription"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Transitions lists every allowed status change. paid → paid keeps webhook
// redelivery idempotent; nothing ever returns to pending.
var Transitions = statemachine.New(
	statemachine.Transition[Status]{From: StatusPending, To: []Status{StatusPaid, StatusFailed, StatusCancelled}},
	statemachine.Transition[Status]{From: StatusPaid, To: []Status{StatusPaid}},
)

type ShippingMethod string

const (
	ShippingLocalPickup ShippingMethod = "local_pickup"
	ShippingExpress     ShippingMethod = "express_3_days"
)

type Provider string

const (
	ProviderBankTransfer      Provider = "bank_transfer"
	ProviderLemonOneTime      Provider = "lemon_one_time"
	ProviderLemonSubscription Provider = "lemon_subscription"
)

// Item is a line of the order, priced when the order was created.
type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	LineTotal float64 `json:"lineTotal"`
}

type BillingDetails struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	Apartment string `json:"apartment,omitempty"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
}

type Order struct {
	ID      string `json:"id"`
	UserID  string `json:"userId,omitempty"`
	GuestID string `json:"guestId,omitempty"`
	Type    Type   `json:"orderType"`

	Items        []Item  `json:"items"`
	Subtotal     float64 `json:"subtotal"`
	ShippingCost float64 `json:"shippingCost"`
	Total        float64 `json:"total"`

	ShippingMethod ShippingMethod `json:"shippingMethod"`
	Billing        BillingDetails `json:"billing"`

	PaymentProvider  Provider   `json:"paymentProvider"`
	PaymentReference string     `json:"paymentReference,omitempty"`
	SubscriptionID   string     `json:"subscriptionId,omitempty"`
	NextBillingDate  *time.Time `json:"nextBillingDate"`
	Status           Status     `json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TotalMinorUnits returns the total in cents, rounded half away from zero.
func (o *Order) TotalMinorUnits() int64 {
	return decimal.NewFromFloat(o.Total).Shift(2).Round(0).IntPart()
}

// OwnedBy reports whether userID owns the order.
func (o *Order) OwnedBy(userID string) bool {
	return o.UserID != "" && o.UserID == userID
}

// Payment describes a gateway event that wants to mark an order paid or move
// its billing date.
type Payment struct {
	Provider        Provider
	Reference       string
	SubscriptionID  string
	NextBillingDate *time.Time
	// Claimed is true when the order id came from data the application itself
	// signed into the checkout (custom data or a stored subscription link),
	// so the event may carry a reference other than the checkout id.
	Claimed bool
}

// MatchesPayment reports whether p may mark o paid. The provider must be the
// one the checkout was started with and the status must allow paid. The event
// must carry the stored reference; a claimed event may replace it only while
// the order is still pending. A subscription order may only be linked to one
// subscription.
func (o *Order) MatchesPayment(p Payment) bool {
	if o.PaymentProvider != p.Provider || !Transitions.Can(o.Status, StatusPaid) {
		return false
	}
	sameRef := o.PaymentReference != "" && o.PaymentReference == p.Reference
	if !sameRef && !(p.Claimed && o.Status == StatusPending) {
		return false
	}
	if p.Provider == ProviderLemonSubscription && o.SubscriptionID != "" && o.SubscriptionID != p.SubscriptionID {
		return false
	}
	return true
}

// MatchesSubscription reports whether a renewal or cancellation of
// subscriptionID may update o's billing date.
func (o *Order) MatchesSubscription(subscriptionID string) bool {
	return o.PaymentProvider == ProviderLemonSubscription &&
		(o.SubscriptionID == "" || o.SubscriptionID == subscriptionID)
}

type Store interface {
	// CreateOrder stores o and sets o.ID.
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	// ListOrdersByUser returns the user's orders, newest first.
	ListOrdersByUser(ctx context.Context, userID string) ([]*Order, error)
	FindOrderByPaymentReference(ctx context.Context, provider Provider, reference string) (*Order, error)
	// LatestPaidSubscriptionOrder returns the most recently updated paid
	// subscription order of the user.
	LatestPaidSubscriptionOrder(ctx context.Context, userID string) (*Order, error)

	// AssignOwner sets the owner of an unowned order. It fails with
	// ErrOrderOwnedByOther when another user owns it.
	AssignOwner(ctx context.Context, id, userID string) error
	// AttachPayment records the checkout provider and reference on a pending
	// order. It fails with ErrOrderNotPending otherwise.
	AttachPayment(ctx context.Context, id string, provider Provider, reference string) error
	// MarkPaid applies p to an order that MatchesPayment and returns the order
	// as it was before the update. It fails with ErrPaymentMismatch when the
	// guard does not hold.
	MarkPaid(ctx context.Context, id string, p Payment) (*Order, error)
	// SetNextBillingDate updates the billing date of an order that
	// MatchesSubscription, or fails with ErrPaymentMismatch.
	SetNextBillingDate(ctx context.Context, id, subscriptionID string, next *time.Time) error
}
