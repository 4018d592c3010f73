package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/storefront/pkg/lemonsqueezy"
	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/pkg/metrics"
	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/order"
)

// Reconciler applies signed gateway webhooks to local records. Every write is
// a field-level set of the state the event reports, so redelivery converges
// to the same records.
type Reconciler struct {
	store    Store
	verifier SignatureVerifier
	opts     options
}

func NewReconciler(store Store, verifier SignatureVerifier, opts ...Option) *Reconciler {
	return &Reconciler{
		store:    store,
		verifier: verifier,
		opts:     buildOptions("billing.webhook", opts),
	}
}

type outcome struct {
	applied     int
	skipped     int
	ignored     bool
	paidOrderID string
}

func (o outcome) label() string {
	switch {
	case o.ignored:
		return metrics.OutcomeIgnored
	case o.applied > 0:
		return metrics.OutcomeApplied
	default:
		return metrics.OutcomeSkipped
	}
}

// HandleWebhook verifies and applies one delivery. It returns
// ErrInvalidSignature before looking at the body. ErrMalformedPayload for a
// signed body that is not JSON and store errors are failures the gateway retries.
// Anything else, including events it does not handle, returns nil.
func (r *Reconciler) HandleWebhook(ctx context.Context, raw []byte, signature string) error {
	if !r.verifier.VerifySignature(raw, signature) {
		r.opts.metrics.WebhookEvent("", metrics.OutcomeRejected)
		return ErrInvalidSignature
	}

	payload, err := lemonsqueezy.ParseWebhook(raw)
	if err != nil {
		r.opts.metrics.WebhookEvent("", metrics.OutcomeRejected)
		return errors.Join(ErrMalformedPayload, err)
	}

	ev, ok := DecodeEvent(payload)
	if !ok {
		r.opts.log.DebugContext(ctx, "webhook without event or data acknowledged", logger.Event(payload.Meta.EventName))
		r.opts.metrics.WebhookEvent(payload.Meta.EventName, metrics.OutcomeIgnored)
		return nil
	}

	var res outcome
	err = r.store.RunInTx(ctx, func(ctx context.Context) error {
		res = outcome{}
		return r.apply(ctx, ev, &res)
	})
	if err != nil {
		r.opts.metrics.WebhookEvent(ev.Name(), metrics.OutcomeFailed)
		r.opts.log.ErrorContext(ctx, "webhook processing failed", logger.Event(ev.Name()), logger.Error(err))
		return err
	}

	r.opts.metrics.WebhookEvent(ev.Name(), res.label())
	r.opts.log.InfoContext(ctx, "webhook processed",
		logger.Event(ev.Name()),
		slog.Int("applied", res.applied),
		slog.Int("skipped", res.skipped),
	)

	if res.paidOrderID != "" {
		r.notifyPaid(ctx, res.paidOrderID)
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, ev Event, res *outcome) error {
	switch e := ev.(type) {
	case OrderPaid:
		return r.orderPaid(ctx, e, res)
	case SubscriptionCreated:
		return r.subscriptionCreated(ctx, e, res)
	case SubscriptionRenewed:
		return r.subscriptionRenewed(ctx, e, res)
	case SubscriptionPaymentFailed:
		return r.subscriptionPaymentFailed(ctx, e, res)
	case SubscriptionEnded:
		return r.subscriptionEnded(ctx, e, res)
	default:
		res.ignored = true
		r.opts.log.DebugContext(ctx, "unhandled webhook event", logger.Event(ev.Name()))
		return nil
	}
}

func (r *Reconciler) orderPaid(ctx context.Context, e OrderPaid, res *outcome) error {
	// Subscription checkouts also produce order_paid; their order is settled
	// by subscription_created.
	if e.PurchaseType == string(order.TypeSubscription) {
		res.ignored = true
		return nil
	}

	orderID := e.Target.OrderID
	if !e.Target.Claimed {
		o, err := r.store.FindOrderByPaymentReference(ctx, order.ProviderLemonOneTime, e.Reference)
		switch {
		case err == nil:
			orderID = o.ID
		case !errors.Is(err, order.ErrOrderNotFound):
			return err
		}
	}
	if orderID == "" {
		r.skip(ctx, e, res, "order not resolved")
		return nil
	}

	prev, err := r.store.MarkPaid(ctx, orderID, order.Payment{
		Provider:  order.ProviderLemonOneTime,
		Reference: e.Reference,
		Claimed:   e.Target.Claimed,
	})
	if err != nil {
		return r.skipOrFail(ctx, e, res, err, logger.OrderID(orderID))
	}

	res.applied++
	if prev.Status == order.StatusPending {
		res.paidOrderID = orderID
	}
	return nil
}

func (r *Reconciler) subscriptionCreated(ctx context.Context, e SubscriptionCreated, res *outcome) error {
	s := e.State
	t, err := r.resolve(ctx, s.SubscriptionID, e.Target)
	if err != nil {
		return err
	}

	orderLinked := false
	if t.OrderID == "" {
		r.skip(ctx, e, res, "order not resolved", logger.SubscriptionID(s.SubscriptionID))
	} else {
		prev, err := r.store.MarkPaid(ctx, t.OrderID, order.Payment{
			Provider:        order.ProviderLemonSubscription,
			Reference:       s.SubscriptionID,
			SubscriptionID:  s.SubscriptionID,
			NextBillingDate: s.RenewsAt,
			Claimed:         t.Claimed,
		})
		if err != nil {
			if err := r.skipOrFail(ctx, e, res, err, logger.OrderID(t.OrderID), logger.SubscriptionID(s.SubscriptionID)); err != nil {
				return err
			}
		} else {
			orderLinked = true
			res.applied++
			if prev.Status == order.StatusPending {
				res.paidOrderID = t.OrderID
			}
		}
	}

	if err := r.setSummary(ctx, e, res, t.UserID, Projection{
		SubscriptionID:  s.SubscriptionID,
		Status:          s.Status,
		NextBillingDate: s.RenewsAt,
		CustomerID:      s.CustomerID,
	}); err != nil {
		return err
	}

	return r.upsert(ctx, e, res, t, orderLinked, s, s.CancelledAt)
}

func (r *Reconciler) subscriptionRenewed(ctx context.Context, e SubscriptionRenewed, res *outcome) error {
	s := e.State
	t, err := r.resolve(ctx, s.SubscriptionID, e.Target)
	if err != nil {
		return err
	}

	orderLinked, err := r.setNextBillingDate(ctx, e, res, t, s.SubscriptionID, s.RenewsAt)
	if err != nil {
		return err
	}

	if err := r.setSummary(ctx, e, res, t.UserID, Projection{
		SubscriptionID:  s.SubscriptionID,
		Status:          s.Status,
		NextBillingDate: s.RenewsAt,
		CustomerID:      s.CustomerID,
		CancelledAt:     s.CancelledAt,
	}); err != nil {
		return err
	}

	return r.upsert(ctx, e, res, t, orderLinked, s, s.CancelledAt)
}

func (r *Reconciler) subscriptionPaymentFailed(ctx context.Context, e SubscriptionPaymentFailed, res *outcome) error {
	s := e.State
	t, err := r.resolve(ctx, s.SubscriptionID, e.Target)
	if err != nil {
		return err
	}

	return r.setSummary(ctx, e, res, t.UserID, Projection{
		SubscriptionID:  s.SubscriptionID,
		Status:          s.Status,
		NextBillingDate: s.RenewsAt,
		CustomerID:      s.CustomerID,
		ForceInactive:   true,
	})
}

func (r *Reconciler) subscriptionEnded(ctx context.Context, e SubscriptionEnded, res *outcome) error {
	s := e.State
	t, err := r.resolve(ctx, s.SubscriptionID, e.Target)
	if err != nil {
		return err
	}

	orderLinked, err := r.setNextBillingDate(ctx, e, res, t, s.SubscriptionID, nil)
	if err != nil {
		return err
	}

	endedAt := firstTime(s.CancelledAt, s.EndsAt)
	summaryEnded := endedAt
	if summaryEnded == nil {
		summaryEnded = r.previousCancellation(ctx, t.UserID, s.SubscriptionID)
	}
	if summaryEnded == nil {
		now := r.opts.now().UTC()
		summaryEnded = &now
	}

	if err := r.setSummary(ctx, e, res, t.UserID, Projection{
		SubscriptionID: s.SubscriptionID,
		Status:         s.Status,
		CustomerID:     s.CustomerID,
		CancelledAt:    summaryEnded,
		ForceInactive:  true,
	}); err != nil {
		return err
	}

	return r.upsert(ctx, e, res, t, orderLinked, s, endedAt)
}

// previousCancellation returns the cancellation time already recorded on the
// user for the same subscription, so a redelivered event keeps it.
func (r *Reconciler) previousCancellation(ctx context.Context, userID, subscriptionID string) *time.Time {
	if userID == "" {
		return nil
	}
	u, err := r.store.GetUserByID(ctx, userID)
	if err != nil || u.Subscription == nil || u.Subscription.ID != subscriptionID {
		return nil
	}
	return u.Subscription.CancelledAt
}

// resolve fills the order and user of a subscription event from the stored
// subscription record when the payload does not name them.
func (r *Reconciler) resolve(ctx context.Context, subscriptionID string, t Target) (Target, error) {
	if t.Claimed && t.UserID != "" {
		return t, nil
	}

	rec, err := r.store.GetSubscriptionByExternalID(ctx, subscriptionID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return t, nil
	}
	if err != nil {
		return t, err
	}

	// An unclaimed OrderID is the gateway's relationship id, not one of ours.
	// The record links the subscription to our order, so it wins.
	if !t.Claimed && rec.OrderID != "" {
		t.OrderID = rec.OrderID
		t.Claimed = true
	}
	if t.UserID == "" {
		t.UserID = rec.UserID
	}
	return t, nil
}

func (r *Reconciler) setNextBillingDate(ctx context.Context, ev Event, res *outcome, t Target, subscriptionID string, next *time.Time) (bool, error) {
	if t.OrderID == "" {
		r.skip(ctx, ev, res, "order not resolved", logger.SubscriptionID(subscriptionID))
		return false, nil
	}
	if err := r.store.SetNextBillingDate(ctx, t.OrderID, subscriptionID, next); err != nil {
		return false, r.skipOrFail(ctx, ev, res, err, logger.OrderID(t.OrderID), logger.SubscriptionID(subscriptionID))
	}
	res.applied++
	return true, nil
}

func (r *Reconciler) setSummary(ctx context.Context, ev Event, res *outcome, userID string, p Projection) error {
	if userID == "" {
		r.skip(ctx, ev, res, "user not resolved", logger.SubscriptionID(p.SubscriptionID))
		return nil
	}
	if err := r.store.SetSubscriptionSummary(ctx, userID, Summarize(p)); err != nil {
		if errors.Is(err, account.ErrUserNotFound) {
			r.skip(ctx, ev, res, "user not found", logger.UserID(userID))
			return nil
		}
		return err
	}
	res.applied++
	return nil
}

func (r *Reconciler) upsert(ctx context.Context, ev Event, res *outcome, t Target, orderLinked bool, s SubscriptionState, cancelledAt *time.Time) error {
	if !orderLinked || t.UserID == "" {
		r.skip(ctx, ev, res, "subscription record needs both user and order", logger.SubscriptionID(s.SubscriptionID))
		return nil
	}
	err := r.store.UpsertSubscription(ctx, &Subscription{
		UserID:      t.UserID,
		OrderID:     t.OrderID,
		ExternalID:  s.SubscriptionID,
		CustomerID:  s.CustomerID,
		Status:      s.Status,
		RenewsAt:    s.RenewsAt,
		EndsAt:      s.EndsAt,
		CancelledAt: cancelledAt,
	})
	if err != nil {
		return err
	}
	res.applied++
	return nil
}

// skipOrFail treats a missing or non-matching order as a skipped side effect
// and anything else as a failure of the whole event.
func (r *Reconciler) skipOrFail(ctx context.Context, ev Event, res *outcome, err error, attrs ...slog.Attr) error {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		r.skip(ctx, ev, res, "order not found", attrs...)
		return nil
	case errors.Is(err, order.ErrPaymentMismatch):
		r.skip(ctx, ev, res, "order does not match payment", attrs...)
		return nil
	}
	return err
}

func (r *Reconciler) skip(ctx context.Context, ev Event, res *outcome, reason string, attrs ...slog.Attr) {
	res.skipped++
	args := make([]any, 0, len(attrs)+2)
	args = append(args, logger.Event(ev.Name()), slog.String("reason", reason))
	for _, a := range attrs {
		args = append(args, a)
	}
	r.opts.log.WarnContext(ctx, "webhook side effect skipped", args...)
}

func (r *Reconciler) notifyPaid(ctx context.Context, orderID string) {
	if r.opts.notifier == nil {
		return
	}
	o, err := r.store.GetOrder(ctx, orderID)
	if err != nil {
		r.opts.log.WarnContext(ctx, "paid order reload failed", logger.OrderID(orderID), logger.Error(err))
		return
	}
	if err := r.opts.notifier.OrderPaid(ctx, o); err != nil {
		r.opts.log.WarnContext(ctx, "payment receipt not sent", logger.OrderID(orderID), logger.Error(err))
	}
}

func firstTime(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil {
			return t
		}
	}
	return nil
}
