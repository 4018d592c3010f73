package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/pkg/lemonsqueezy"
	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/billing"
	"github.com/dmitrymomot/storefront/svc/catalog"
	"github.com/dmitrymomot/storefront/svc/checkout"
	"github.com/dmitrymomot/storefront/svc/order"
	"github.com/dmitrymomot/storefront/svc/store/memstore"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckout(ctx context.Context, p lemonsqueezy.CheckoutParams) (*lemonsqueezy.Checkout, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lemonsqueezy.Checkout), args.Error(1)
}

var cfg = checkout.Config{
	BaseURL:               "https://shop.example.com/",
	OneTimeVariantID:      "111",
	SubscriptionVariantID: "222",
}

type fixture struct {
	store  *memstore.Store
	orders *order.Service
	svc    *checkout.Service
	gw     *mockGateway
	ada    *account.User
	bob    *account.User
}

func newFixture(t *testing.T, c checkout.Config) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	gw := &mockGateway{}
	t.Cleanup(func() { gw.AssertExpectations(t) })

	f := &fixture{
		store:  store,
		orders: order.NewService(store, catalog.NewService(store, nil), order.Config{ExpressShippingFee: 500}),
		svc:    checkout.NewService(store, gw, c),
		gw:     gw,
		ada:    &account.User{Subject: "idp|ada", Email: "ada@example.com", Phone: "+15550001111"},
		bob:    &account.User{Subject: "idp|bob", Email: "bob@example.com", Phone: "+15550002222"},
	}
	require.NoError(t, store.CreateUser(ctx, f.ada))
	require.NoError(t, store.CreateUser(ctx, f.bob))
	return f
}

func (f *fixture) newOrder(t *testing.T, typ order.Type, userID string) *order.Order {
	t.Helper()
	ctx := context.Background()
	big := &catalog.Product{Slug: "big", Name: "Big Jar", Price: 1000, Active: true}
	small := &catalog.Product{Slug: "small", Name: "Small Jar", Price: 500, Active: true}
	require.NoError(t, f.store.UpsertProductBySlug(ctx, big))
	require.NoError(t, f.store.UpsertProductBySlug(ctx, small))

	o, err := f.orders.CreateOrder(ctx, order.CreateOrderParams{
		Items: []order.ItemParams{{ProductID: big.ID, Quantity: 2}, {ProductID: small.ID, Quantity: 1}},
		Billing: order.BillingDetails{
			FirstName: "Ada", LastName: "Lovelace", Email: "billing@example.com", Phone: "+15550001111",
			Street: "1 Main St", City: "London", Postcode: "SW1", Country: "GB",
		},
		PurchaseType: typ,
		UserID:       userID,
		GuestID:      "guest-1",
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) getOrder(t *testing.T, id string) *order.Order {
	t.Helper()
	o, err := f.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func TestStartOneTime_ThenOrderPaid(t *testing.T) {
	t.Parallel()
	f := newFixture(t, cfg)
	ctx := context.Background()
	o := f.newOrder(t, order.TypeOneTime, "")
	require.Equal(t, 2500.0, o.Total)

	f.gw.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(p lemonsqueezy.CheckoutParams) bool {
		return p.VariantID == "111" &&
			p.CustomPrice != nil && *p.CustomPrice == 250000 &&
			p.Email == "billing@example.com" &&
			p.Custom["orderId"] == o.ID &&
			p.Custom["type"] == "one_time" &&
			p.RedirectURL == "https://shop.example.com/checkout/success?orderId="+o.ID
	})).Return(&lemonsqueezy.Checkout{ID: "chk_1", URL: "https://pay.example.com/chk_1"}, nil).Once()

	url, err := f.svc.StartOneTime(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/chk_1", url)

	got := f.getOrder(t, o.ID)
	assert.Equal(t, order.ProviderLemonOneTime, got.PaymentProvider)
	assert.Equal(t, "chk_1", got.PaymentReference)
	assert.Equal(t, order.StatusPending, got.Status)

	secret := []byte("whsec")
	reconciler := billing.NewReconciler(f.store, verifier(secret))
	raw, err := json.Marshal(map[string]any{
		"meta": map[string]any{"event_name": "order_paid"},
		"data": map[string]any{"id": "chk_1", "type": "orders"},
	})
	require.NoError(t, err)
	require.NoError(t, reconciler.HandleWebhook(ctx, raw, lemonsqueezy.Sign(secret, raw)))

	assert.Equal(t, order.StatusPaid, f.getOrder(t, o.ID).Status)
}

type verifier []byte

func (v verifier) VerifySignature(raw []byte, sig string) bool {
	return lemonsqueezy.VerifySignature(v, raw, sig)
}

func TestStartSubscription(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("owner starts checkout", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, cfg)
		o := f.newOrder(t, order.TypeSubscription, f.ada.ID)

		f.gw.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(p lemonsqueezy.CheckoutParams) bool {
			return p.VariantID == "222" && p.CustomPrice == nil &&
				p.Email == "ada@example.com" &&
				p.Custom["userId"] == f.ada.ID && p.Custom["orderId"] == o.ID
		})).Return(&lemonsqueezy.Checkout{ID: "chk_9", CheckoutURL: "https://pay.example.com/9"}, nil).Once()

		url, err := f.svc.StartSubscription(ctx, o.ID, f.ada)
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/9", url)

		got := f.getOrder(t, o.ID)
		assert.Equal(t, order.ProviderLemonSubscription, got.PaymentProvider)
		assert.Equal(t, "chk_9", got.PaymentReference)
	})

	t.Run("unowned order is claimed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, cfg)
		o := f.newOrder(t, order.TypeSubscription, "")

		f.gw.On("CreateCheckout", mock.Anything, mock.Anything).
			Return(&lemonsqueezy.Checkout{ID: "chk_9", URL: "https://pay.example.com/9"}, nil).Once()

		_, err := f.svc.StartSubscription(ctx, o.ID, f.bob)
		require.NoError(t, err)
		assert.Equal(t, f.bob.ID, f.getOrder(t, o.ID).UserID)
	})

	t.Run("other owner is forbidden without a gateway call", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, cfg)
		o := f.newOrder(t, order.TypeSubscription, f.ada.ID)

		_, err := f.svc.StartSubscription(ctx, o.ID, f.bob)
		require.ErrorIs(t, err, checkout.ErrForbidden)
		f.gw.AssertNotCalled(t, "CreateCheckout", mock.Anything, mock.Anything)
	})

	t.Run("one-time order is rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, cfg)
		o := f.newOrder(t, order.TypeOneTime, f.ada.ID)

		_, err := f.svc.StartSubscription(ctx, o.ID, f.ada)
		assert.ErrorIs(t, err, checkout.ErrOrderTypeMismatch)
	})
}

func TestStart_PaidOrderIsNotReused(t *testing.T) {
	t.Parallel()
	f := newFixture(t, cfg)
	ctx := context.Background()
	o := f.newOrder(t, order.TypeOneTime, "")

	require.NoError(t, f.store.AttachPayment(ctx, o.ID, order.ProviderLemonOneTime, "chk_1"))
	_, err := f.store.MarkPaid(ctx, o.ID, order.Payment{Provider: order.ProviderLemonOneTime, Reference: "chk_1"})
	require.NoError(t, err)

	_, err = f.svc.StartOneTime(ctx, o.ID)
	require.ErrorIs(t, err, checkout.ErrOrderNotPending)
	f.gw.AssertNotCalled(t, "CreateCheckout", mock.Anything, mock.Anything)
}

func TestStart_Failures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing order id", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, cfg)
		_, err := f.svc.StartOneTime(ctx, " ")
		assert.ErrorIs(t, err, checkout.ErrMissingOrderID)
	})

	t.Run("unknown order", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, cfg)
		_, err := f.svc.StartOneTime(ctx, "nope")
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})

	t.Run("variant not configured", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, checkout.Config{BaseURL: "http://localhost"})
		o := f.newOrder(t, order.TypeOneTime, "")
		_, err := f.svc.StartOneTime(ctx, o.ID)
		assert.ErrorIs(t, err, checkout.ErrNotConfigured)
	})

	t.Run("gateway error leaves order untouched", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, cfg)
		o := f.newOrder(t, order.TypeOneTime, "")
		f.gw.On("CreateCheckout", mock.Anything, mock.Anything).
			Return(nil, &lemonsqueezy.APIError{StatusCode: 422, Detail: "variant archived"}).Once()

		_, err := f.svc.StartOneTime(ctx, o.ID)
		require.ErrorIs(t, err, checkout.ErrGatewayFailure)
		var apiErr *lemonsqueezy.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "variant archived", apiErr.Detail)

		got := f.getOrder(t, o.ID)
		assert.Equal(t, order.ProviderBankTransfer, got.PaymentProvider)
		assert.Empty(t, got.PaymentReference)
	})

	t.Run("checkout without url", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, cfg)
		o := f.newOrder(t, order.TypeOneTime, "")
		f.gw.On("CreateCheckout", mock.Anything, mock.Anything).
			Return(&lemonsqueezy.Checkout{ID: "chk_1"}, nil).Once()

		_, err := f.svc.StartOneTime(ctx, o.ID)
		assert.ErrorIs(t, err, checkout.ErrNoCheckoutURL)
	})
}
