package billing

import (
	"time"

	"github.com/dmitrymomot/storefront/pkg/lemonsqueezy"
)

// Event is a decoded gateway webhook. The concrete types are OrderPaid,
// SubscriptionCreated, SubscriptionRenewed, SubscriptionPaymentFailed,
// SubscriptionEnded and UnknownEvent.
type Event interface {
	Name() string
	event()
}

// Target names the local records an event concerns, as far as the payload
// tells. Claimed is true when OrderID came from custom data the application
// put on the checkout.
type Target struct {
	OrderID string
	UserID  string
	Claimed bool
}

// SubscriptionState is what subscription events report about the
// subscription.
type SubscriptionState struct {
	SubscriptionID string
	Status         string
	CustomerID     string
	RenewsAt       *time.Time
	EndsAt         *time.Time
	CancelledAt    *time.Time
}

// OrderPaid is a completed one-time payment. Reference is the gateway id of
// the paid resource.
type OrderPaid struct {
	Reference string
	// PurchaseType is the "type" custom data field, if present.
	PurchaseType string
	Target       Target
}

type SubscriptionCreated struct {
	State  SubscriptionState
	Target Target
}

// SubscriptionRenewed covers successful payments, updates and resumes.
type SubscriptionRenewed struct {
	EventName string
	State     SubscriptionState
	Target    Target
}

type SubscriptionPaymentFailed struct {
	State  SubscriptionState
	Target Target
}

// SubscriptionEnded covers cancellations and expirations.
type SubscriptionEnded struct {
	EventName string
	State     SubscriptionState
	Target    Target
}

// UnknownEvent is any event name the reconciler does not handle.
type UnknownEvent struct {
	EventName string
}

func (OrderPaid) Name() string                 { return lemonsqueezy.EventOrderPaid }
func (SubscriptionCreated) Name() string       { return lemonsqueezy.EventSubscriptionCreated }
func (e SubscriptionRenewed) Name() string     { return e.EventName }
func (SubscriptionPaymentFailed) Name() string { return lemonsqueezy.EventSubscriptionPaymentFailed }
func (e SubscriptionEnded) Name() string       { return e.EventName }
func (e UnknownEvent) Name() string            { return e.EventName }

func (OrderPaid) event()                 {}
func (SubscriptionCreated) event()       {}
func (SubscriptionRenewed) event()       {}
func (SubscriptionPaymentFailed) event() {}
func (SubscriptionEnded) event()         {}
func (UnknownEvent) event()              {}

// DecodeEvent turns a webhook payload into an Event. It returns false when the
// payload has no event name or no data resource.
func DecodeEvent(p *lemonsqueezy.WebhookPayload) (Event, bool) {
	if p == nil || p.Meta.EventName == "" || p.Data == nil {
		return nil, false
	}

	custom := p.Custom()
	target := Target{UserID: custom["userId"]}
	if id := custom["orderId"]; id != "" {
		target.OrderID = id
		target.Claimed = true
	} else {
		target.OrderID = p.Data.Relationships.OrderID()
	}

	attrs := p.Data.Attributes
	state := SubscriptionState{
		SubscriptionID: p.Data.ID,
		Status:         attrs.Status,
		CustomerID:     string(attrs.CustomerID),
		RenewsAt:       attrs.RenewsAt.Time,
		EndsAt:         attrs.EndsAt.Time,
		CancelledAt:    attrs.CancelledAt.Time,
	}

	switch name := p.Meta.EventName; name {
	case lemonsqueezy.EventOrderPaid:
		return OrderPaid{Reference: p.Data.ID, PurchaseType: custom["type"], Target: target}, true
	case lemonsqueezy.EventSubscriptionCreated:
		return SubscriptionCreated{State: state, Target: target}, true
	case lemonsqueezy.EventSubscriptionPaymentSuccess,
		lemonsqueezy.EventSubscriptionUpdated,
		lemonsqueezy.EventSubscriptionResumed:
		return SubscriptionRenewed{EventName: name, State: state, Target: target}, true
	case lemonsqueezy.EventSubscriptionPaymentFailed:
		return SubscriptionPaymentFailed{State: state, Target: target}, true
	case lemonsqueezy.EventSubscriptionCancelled, lemonsqueezy.EventSubscriptionExpired:
		return SubscriptionEnded{EventName: name, State: state, Target: target}, true
	default:
		return UnknownEvent{EventName: name}, true
	}
}
