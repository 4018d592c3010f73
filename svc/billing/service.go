package billing

import (
	"context"
	"errors"

	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/order"
)

// StatusCancelled is written locally when a user cancels, ahead of the
// gateway's own cancellation webhook.
const StatusCancelled = "cancelled"

// Service serves the subscription section of the customer dashboard.
type Service struct {
	store   Store
	gateway SubscriptionCanceller
	opts    options
}

func NewService(store Store, gateway SubscriptionCanceller, opts ...Option) *Service {
	return &Service{store: store, gateway: gateway, opts: buildOptions("billing", opts)}
}

// CancelSubscription cancels the user's subscription at the gateway and then
// marks it cancelled locally. Nothing local changes when the gateway call
// fails.
func (s *Service) CancelSubscription(ctx context.Context, userID string) (*account.SubscriptionSummary, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, account.ErrUserNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}
	if u.Subscription == nil || u.Subscription.ID == "" {
		return nil, ErrNoSubscription
	}
	current := u.Subscription

	if err := s.gateway.CancelSubscription(ctx, current.ID); err != nil {
		s.opts.log.ErrorContext(ctx, "gateway cancellation failed",
			logger.UserID(userID),
			logger.SubscriptionID(current.ID),
			logger.Error(err),
		)
		return nil, errors.Join(ErrGatewayFailure, err)
	}

	now := s.opts.now().UTC()
	summary := Summarize(Projection{
		SubscriptionID:  current.ID,
		Status:          StatusCancelled,
		NextBillingDate: current.NextBillingDate,
		CustomerID:      current.CustomerID,
		CancelledAt:     &now,
		ForceInactive:   true,
	})

	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.MarkSubscriptionCancelled(ctx, current.ID, now); err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
			return err
		}
		return s.store.SetSubscriptionSummary(ctx, userID, summary)
	})
	if err != nil {
		return nil, err
	}

	s.opts.log.InfoContext(ctx, "subscription cancelled by user",
		logger.UserID(userID),
		logger.SubscriptionID(current.ID),
	)
	return summary, nil
}

// GetSubscription returns the user's subscription summary. A user without a
// stored summary gets one rebuilt from the latest subscription record, or
// from the latest paid subscription order, and the rebuilt summary is saved.
// It returns nil when the user never subscribed.
func (s *Service) GetSubscription(ctx context.Context, userID string) (*account.SubscriptionSummary, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Subscription != nil && u.Subscription.ID != "" {
		return u.Subscription, nil
	}

	summary, err := s.rebuild(ctx, u)
	if err != nil || summary == nil {
		return nil, err
	}

	if err := s.store.SetSubscriptionSummary(ctx, userID, summary); err != nil {
		return nil, err
	}
	s.opts.log.InfoContext(ctx, "subscription summary rebuilt",
		logger.UserID(userID),
		logger.SubscriptionID(summary.ID),
	)
	return summary, nil
}

func (s *Service) rebuild(ctx context.Context, u *account.User) (*account.SubscriptionSummary, error) {
	rec, err := s.store.LatestSubscriptionForUser(ctx, u.ID)
	switch {
	case err == nil:
		return SummaryFromSubscription(rec), nil
	case !errors.Is(err, ErrSubscriptionNotFound):
		return nil, err
	}

	o, err := s.store.LatestPaidSubscriptionOrder(ctx, u.ID)
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}

	id := o.SubscriptionID
	if id == "" {
		id = o.PaymentReference
	}
	if id == "" {
		return nil, nil
	}
	status := "inactive"
	if o.NextBillingDate != nil {
		status = "active"
	}
	var customerID string
	if u.Subscription != nil {
		customerID = u.Subscription.CustomerID
	}

	return Summarize(Projection{
		SubscriptionID:  id,
		Status:          status,
		NextBillingDate: o.NextBillingDate,
		CustomerID:      customerID,
	}), nil
}
