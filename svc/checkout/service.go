// Package checkout starts hosted payment sessions for pending orders.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/storefront/pkg/lemonsqueezy"
	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/pkg/metrics"
	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/order"
)

// Gateway creates hosted checkouts. *lemonsqueezy.Client implements it.
type Gateway interface {
	CreateCheckout(ctx context.Context, p lemonsqueezy.CheckoutParams) (*lemonsqueezy.Checkout, error)
}

type Config struct {
	// BaseURL is the public storefront URL buyers return to after paying.
	BaseURL               string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	OneTimeVariantID      string `env:"LEMONSQUEEZY_ONE_TIME_VARIANT_ID"`
	SubscriptionVariantID string `env:"LEMONSQUEEZY_SUBSCRIPTION_VARIANT_ID"`
}

type Service struct {
	orders  order.Store
	gateway Gateway
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(orders order.Store, gateway Gateway, cfg Config, opts ...Option) *Service {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	s := &Service{orders: orders, gateway: gateway, cfg: cfg, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("checkout"))
	return s
}

// StartOneTime creates a checkout charging exactly the order total and
// returns the URL to redirect the buyer to.
func (s *Service) StartOneTime(ctx context.Context, orderID string) (string, error) {
	o, err := s.pendingOrder(ctx, orderID, order.TypeOneTime)
	if err != nil {
		return "", err
	}
	if s.cfg.OneTimeVariantID == "" {
		return "", ErrNotConfigured
	}

	amount := o.TotalMinorUnits()
	if amount <= 0 {
		return "", ErrInvalidAmount
	}

	return s.start(ctx, o, order.ProviderLemonOneTime, lemonsqueezy.CheckoutParams{
		VariantID:   s.cfg.OneTimeVariantID,
		Email:       o.Billing.Email,
		RedirectURL: s.redirectURL(o.ID),
		Custom: map[string]string{
			"orderId": o.ID,
			"type":    string(order.TypeOneTime),
		},
		CustomPrice: lemonsqueezy.Price(amount),
	})
}

// StartSubscription creates a subscription checkout for requester. An order
// without an owner is assigned to the requester first.
func (s *Service) StartSubscription(ctx context.Context, orderID string, requester *account.User) (string, error) {
	if requester == nil || requester.ID == "" {
		return "", account.ErrUnauthenticated
	}

	o, err := s.pendingOrder(ctx, orderID, order.TypeSubscription)
	if err != nil {
		return "", err
	}
	switch {
	case o.UserID == "":
		if err := s.orders.AssignOwner(ctx, o.ID, requester.ID); err != nil {
			if errors.Is(err, order.ErrOrderOwnedByOther) {
				return "", ErrForbidden
			}
			return "", err
		}
		o.UserID = requester.ID
	case o.UserID != requester.ID:
		return "", ErrForbidden
	}

	if s.cfg.SubscriptionVariantID == "" {
		return "", ErrNotConfigured
	}

	email := o.Billing.Email
	if requester.Email != "" {
		email = requester.Email
	}

	return s.start(ctx, o, order.ProviderLemonSubscription, lemonsqueezy.CheckoutParams{
		VariantID:   s.cfg.SubscriptionVariantID,
		Email:       email,
		RedirectURL: s.redirectURL(o.ID),
		Custom: map[string]string{
			"orderId": o.ID,
			"userId":  requester.ID,
			"type":    string(order.TypeSubscription),
		},
	})
}

func (s *Service) pendingOrder(ctx context.Context, orderID string, want order.Type) (*order.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrMissingOrderID
	}
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Type != want {
		return nil, ErrOrderTypeMismatch
	}
	if o.Status != order.StatusPending {
		return nil, ErrOrderNotPending
	}
	return o, nil
}

func (s *Service) start(ctx context.Context, o *order.Order, provider order.Provider, p lemonsqueezy.CheckoutParams) (string, error) {
	started := time.Now()
	checkout, err := s.gateway.CreateCheckout(ctx, p)
	s.metrics.CheckoutSession(string(o.Type), err)
	if err != nil {
		s.log.ErrorContext(ctx, "gateway checkout failed",
			logger.OrderID(o.ID),
			logger.Error(err),
		)
		return "", errors.Join(ErrGatewayFailure, err)
	}

	if err := s.orders.AttachPayment(ctx, o.ID, provider, checkout.ID); err != nil {
		if errors.Is(err, order.ErrOrderNotPending) {
			return "", ErrOrderNotPending
		}
		return "", err
	}

	redirect := checkout.RedirectURL()
	if redirect == "" {
		s.log.ErrorContext(ctx, "gateway checkout has no url", logger.OrderID(o.ID), slog.String("checkout_id", checkout.ID))
		return "", ErrNoCheckoutURL
	}

	s.log.InfoContext(ctx, "checkout started",
		logger.OrderID(o.ID),
		slog.String("provider", string(provider)),
		slog.String("checkout_id", checkout.ID),
		slog.Duration("took", time.Since(started)),
	)
	return redirect, nil
}

func (s *Service) redirectURL(orderID string) string {
	return s.cfg.BaseURL + "/checkout/success?orderId=" + url.QueryEscape(orderID)
}
