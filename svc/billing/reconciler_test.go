package billing_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/pkg/lemonsqueezy"
	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/billing"
	"github.com/dmitrymomot/storefront/svc/order"
	"github.com/dmitrymomot/storefront/svc/store/memstore"
)

var (
	secret = []byte("whsec_test")
	now    = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
)

type secretVerifier []byte

func (s secretVerifier) VerifySignature(raw []byte, sig string) bool {
	return lemonsqueezy.VerifySignature(s, raw, sig)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) OrderPaid(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

type fixture struct {
	store      *memstore.Store
	reconciler *billing.Reconciler
	notifier   *mockNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memstore.New(), notifier: &mockNotifier{}}
	f.reconciler = billing.NewReconciler(f.store, secretVerifier(secret),
		billing.WithNotifier(f.notifier),
		billing.WithClock(func() time.Time { return now }),
	)
	t.Cleanup(func() { f.notifier.AssertExpectations(t) })
	return f
}

func (f *fixture) deliver(t *testing.T, payload map[string]any) error {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return f.reconciler.HandleWebhook(context.Background(), raw, lemonsqueezy.Sign(secret, raw))
}

func (f *fixture) user(t *testing.T) *account.User {
	t.Helper()
	u := &account.User{Subject: "idp|" + t.Name(), Email: "buyer@example.com", Phone: "+15550001111"}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) order(t *testing.T, typ order.Type, userID string, provider order.Provider, ref string) *order.Order {
	t.Helper()
	ctx := context.Background()
	o := &order.Order{Type: typ, UserID: userID, Status: order.StatusPending, Total: 25, Billing: order.BillingDetails{Email: "buyer@example.com"}}
	require.NoError(t, f.store.CreateOrder(ctx, o))
	require.NoError(t, f.store.AttachPayment(ctx, o.ID, provider, ref))
	return o
}

func (f *fixture) getOrder(t *testing.T, id string) *order.Order {
	t.Helper()
	o, err := f.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) getUser(t *testing.T, id string) *account.User {
	t.Helper()
	u, err := f.store.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func event(name, id string, custom map[string]any, attrs map[string]any) map[string]any {
	meta := map[string]any{"event_name": name}
	if custom != nil {
		meta["custom_data"] = custom
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return map[string]any{
		"meta": meta,
		"data": map[string]any{"id": id, "type": "subscriptions", "attributes": attrs},
	}
}

func subAttrs(status string, renewsAt *time.Time) map[string]any {
	attrs := map[string]any{"status": status, "customer_id": 4242}
	if renewsAt != nil {
		attrs["renews_at"] = renewsAt.Format(time.RFC3339)
	}
	return attrs
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	o := f.order(t, order.TypeOneTime, "", order.ProviderLemonOneTime, "chk_1")

	raw := []byte(`{"meta":{"event_name":"order_paid"},"data":{"id":"chk_1"}}`)
	err := f.reconciler.HandleWebhook(context.Background(), raw, lemonsqueezy.Sign([]byte("other"), raw))
	require.ErrorIs(t, err, billing.ErrInvalidSignature)

	assert.Equal(t, order.StatusPending, f.getOrder(t, o.ID).Status)
}

func TestHandleWebhook_MalformedBody(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	raw := []byte(`{"meta":`)
	err := f.reconciler.HandleWebhook(context.Background(), raw, lemonsqueezy.Sign(secret, raw))
	assert.ErrorIs(t, err, billing.ErrMalformedPayload)
}

func TestHandleWebhook_AcknowledgesEmptyAndUnknownEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	o := f.order(t, order.TypeOneTime, "", order.ProviderLemonOneTime, "chk_1")

	require.NoError(t, f.deliver(t, map[string]any{"meta": map[string]any{}}))
	require.NoError(t, f.deliver(t, event("license_key_created", "chk_1", map[string]any{"orderId": o.ID}, nil)))

	got := f.getOrder(t, o.ID)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, "chk_1", got.PaymentReference)
}

func TestOrderPaid(t *testing.T) {
	t.Parallel()

	t.Run("by checkout reference", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		o := f.order(t, order.TypeOneTime, "", order.ProviderLemonOneTime, "chk_1")
		f.notifier.On("OrderPaid", mock.Anything, mock.MatchedBy(func(p *order.Order) bool { return p.ID == o.ID })).Return(nil).Once()

		require.NoError(t, f.deliver(t, event(lemonsqueezy.EventOrderPaid, "chk_1", nil, nil)))
		assert.Equal(t, order.StatusPaid, f.getOrder(t, o.ID).Status)

		// redelivery is a no-op and does not notify again
		require.NoError(t, f.deliver(t, event(lemonsqueezy.EventOrderPaid, "chk_1", nil, nil)))
		got := f.getOrder(t, o.ID)
		assert.Equal(t, order.StatusPaid, got.Status)
		assert.Equal(t, order.ProviderLemonOneTime, got.PaymentProvider)
	})

	t.Run("by custom order id", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		o := f.order(t, order.TypeOneTime, "", order.ProviderLemonOneTime, "chk_1")
		f.notifier.On("OrderPaid", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

		require.NoError(t, f.deliver(t, event(lemonsqueezy.EventOrderPaid, "ord_77", map[string]any{"orderId": o.ID, "type": "one_time"}, nil)))
		got := f.getOrder(t, o.ID)
		assert.Equal(t, order.StatusPaid, got.Status)
		assert.Equal(t, "ord_77", got.PaymentReference)
	})

	t.Run("claimed event cannot replace the reference of a paid order", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		o := f.order(t, order.TypeOneTime, "", order.ProviderLemonOneTime, "chk_1")
		f.notifier.On("OrderPaid", mock.Anything, mock.Anything).Return(nil).Once()

		require.NoError(t, f.deliver(t, event(lemonsqueezy.EventOrderPaid, "chk_1", nil, nil)))
		require.NoError(t, f.deliver(t, event(lemonsqueezy.EventOrderPaid, "ord_unrelated", map[string]any{"orderId": o.ID}, nil)))

		got := f.getOrder(t, o.ID)
		assert.Equal(t, order.StatusPaid, got.Status)
		assert.Equal(t, "chk_1", got.PaymentReference)
	})

	t.Run("unknown reference is skipped", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		o := f.order(t, order.TypeOneTime, "", order.ProviderLemonOneTime, "chk_1")

		require.NoError(t, f.deliver(t, event(lemonsqueezy.EventOrderPaid, "chk_other", nil, nil)))
		assert.Equal(t, order.StatusPending, f.getOrder(t, o.ID).Status)
	})

	t.Run("provider mismatch is skipped", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		o := f.order(t, order.TypeOneTime, "", order.ProviderBankTransfer, "")

		require.NoError(t, f.deliver(t, event(lemonsqueezy.EventOrderPaid, "ord_1", map[string]any{"orderId": o.ID}, nil)))
		assert.Equal(t, order.StatusPending, f.getOrder(t, o.ID).Status)
	})

	t.Run("subscription purchase is left to subscription events", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		o := f.order(t, order.TypeSubscription, "", order.ProviderLemonSubscription, "chk_1")

		require.NoError(t, f.deliver(t, event(lemonsqueezy.EventOrderPaid, "ord_1", map[string]any{"orderId": o.ID, "type": "subscription"}, nil)))
		assert.Equal(t, order.StatusPending, f.getOrder(t, o.ID).Status)
	})
}

func TestSubscriptionLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t)
	o := f.order(t, order.TypeSubscription, u.ID, order.ProviderLemonSubscription, "chk_1")
	renews := now.AddDate(0, 1, 0)
	f.notifier.On("OrderPaid", mock.Anything, mock.Anything).Return(nil).Once()

	created := event(lemonsqueezy.EventSubscriptionCreated, "sub_1",
		map[string]any{"orderId": o.ID, "userId": u.ID}, subAttrs("active", &renews))
	require.NoError(t, f.deliver(t, created))

	got := f.getOrder(t, o.ID)
	assert.Equal(t, order.StatusPaid, got.Status)
	assert.Equal(t, "sub_1", got.SubscriptionID)
	require.NotNil(t, got.NextBillingDate)
	assert.True(t, renews.Equal(*got.NextBillingDate))

	gotUser := f.getUser(t, u.ID)
	require.NotNil(t, gotUser.Subscription)
	assert.True(t, gotUser.Subscription.Active)
	assert.Equal(t, "4242", gotUser.Subscription.CustomerID)

	rec, err := f.store.GetSubscriptionByExternalID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, rec.OrderID)
	assert.Equal(t, u.ID, rec.UserID)

	// redelivery converges to the same state
	require.NoError(t, f.deliver(t, created))
	again := f.getUser(t, u.ID)
	assert.Equal(t, gotUser.Subscription, again.Subscription)

	// payment failure without custom data resolves through the record
	require.NoError(t, f.deliver(t, event(lemonsqueezy.EventSubscriptionPaymentFailed, "sub_1", nil, subAttrs("past_due", &renews))))
	failed := f.getUser(t, u.ID)
	assert.False(t, failed.Subscription.Active)
	assert.Equal(t, "past_due", failed.Subscription.Status)

	orderAfter := f.getOrder(t, o.ID)
	assert.Equal(t, got.NextBillingDate, orderAfter.NextBillingDate)
	recAfter, err := f.store.GetSubscriptionByExternalID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "active", recAfter.Status)
}

func TestSubscriptionUpdated_SingleRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t)
	o := f.order(t, order.TypeSubscription, u.ID, order.ProviderLemonSubscription, "chk_1")
	renews := now.AddDate(0, 1, 0)
	next := now.AddDate(0, 2, 0)
	f.notifier.On("OrderPaid", mock.Anything, mock.Anything).Return(nil).Once()

	custom := map[string]any{"orderId": o.ID, "userId": u.ID}
	require.NoError(t, f.deliver(t, event(lemonsqueezy.EventSubscriptionCreated, "sub_1", custom, subAttrs("active", &renews))))
	require.NoError(t, f.deliver(t, event(lemonsqueezy.EventSubscriptionUpdated, "sub_1", nil, subAttrs("active", &next))))

	rec, err := f.store.LatestSubscriptionForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "sub_1", rec.ExternalID)
	assert.True(t, next.Equal(*rec.RenewsAt))

	got := f.getOrder(t, o.ID)
	assert.True(t, next.Equal(*got.NextBillingDate))
	assert.True(t, next.Equal(*f.getUser(t, u.ID).Subscription.NextBillingDate))
}

func TestSubscriptionRenewed_RecordWinsOverRelationshipOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t)
	o := f.order(t, order.TypeSubscription, u.ID, order.ProviderLemonSubscription, "chk_1")
	renews := now.AddDate(0, 1, 0)
	next := now.AddDate(0, 2, 0)
	f.notifier.On("OrderPaid", mock.Anything, mock.Anything).Return(nil).Once()

	custom := map[string]any{"orderId": o.ID, "userId": u.ID}
	require.NoError(t, f.deliver(t, event(lemonsqueezy.EventSubscriptionCreated, "sub_1", custom, subAttrs("active", &renews))))

	renewed := event(lemonsqueezy.EventSubscriptionPaymentSuccess, "sub_1", nil, subAttrs("active", &next))
	renewed["data"].(map[string]any)["relationships"] = map[string]any{
		"order": map[string]any{"data": map[string]any{"type": "orders", "id": "9001"}},
	}
	require.NoError(t, f.deliver(t, renewed))

	got := f.getOrder(t, o.ID)
	require.NotNil(t, got.NextBillingDate)
	assert.True(t, next.Equal(*got.NextBillingDate))

	rec, err := f.store.GetSubscriptionByExternalID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, o.ID, rec.OrderID)
	_, err = f.store.GetOrder(ctx, "9001")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestSubscriptionCreated_WithoutContextIsSkipped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u := f.user(t)
	o := f.order(t, order.TypeSubscription, u.ID, order.ProviderLemonSubscription, "chk_1")

	require.NoError(t, f.deliver(t, event(lemonsqueezy.EventSubscriptionCreated, "sub_1", nil, subAttrs("active", nil))))

	assert.Equal(t, order.StatusPending, f.getOrder(t, o.ID).Status)
	assert.Nil(t, f.getUser(t, u.ID).Subscription)
	_, err := f.store.GetSubscriptionByExternalID(context.Background(), "sub_1")
	assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
}

func TestSubscriptionCreated_OtherSubscriptionCannotRelinkOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u := f.user(t)
	o := f.order(t, order.TypeSubscription, u.ID, order.ProviderLemonSubscription, "chk_1")
	f.notifier.On("OrderPaid", mock.Anything, mock.Anything).Return(nil).Once()

	custom := map[string]any{"orderId": o.ID, "userId": u.ID}
	require.NoError(t, f.deliver(t, event(lemonsqueezy.EventSubscriptionCreated, "sub_1", custom, subAttrs("active", nil))))
	require.NoError(t, f.deliver(t, event(lemonsqueezy.EventSubscriptionCreated, "sub_2", custom, subAttrs("active", nil))))

	assert.Equal(t, "sub_1", f.getOrder(t, o.ID).SubscriptionID)
	_, err := f.store.GetSubscriptionByExternalID(context.Background(), "sub_2")
	assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
}

func TestSubscriptionEnded(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) (*fixture, *account.User, *order.Order) {
		f := newFixture(t)
		u := f.user(t)
		o := f.order(t, order.TypeSubscription, u.ID, order.ProviderLemonSubscription, "chk_1")
		renews := now.AddDate(0, 1, 0)
		f.notifier.On("OrderPaid", mock.Anything, mock.Anything).Return(nil).Once()
		require.NoError(t, f.deliver(t, event(lemonsqueezy.EventSubscriptionCreated, "sub_1",
			map[string]any{"orderId": o.ID, "userId": u.ID}, subAttrs("active", &renews))))
		return f, u, o
	}

	t.Run("uses reported cancellation time", func(t *testing.T) {
		t.Parallel()
		f, u, o := setup(t)
		cancelled := now.Add(-time.Hour)
		attrs := subAttrs("cancelled", nil)
		attrs["cancelled_at"] = cancelled.Format(time.RFC3339)

		require.NoError(t, f.deliver(t, event(lemonsqueezy.EventSubscriptionCancelled, "sub_1", nil, attrs)))

		sum := f.getUser(t, u.ID).Subscription
		assert.False(t, sum.Active)
		assert.Nil(t, sum.NextBillingDate)
		assert.True(t, cancelled.Equal(*sum.CancelledAt))
		assert.Nil(t, f.getOrder(t, o.ID).NextBillingDate)

		rec, err := f.store.GetSubscriptionByExternalID(context.Background(), "sub_1")
		require.NoError(t, err)
		assert.Equal(t, "cancelled", rec.Status)
		assert.True(t, cancelled.Equal(*rec.CancelledAt))
	})

	t.Run("falls back to now and keeps it on redelivery", func(t *testing.T) {
		t.Parallel()
		f, u, _ := setup(t)
		expired := event(lemonsqueezy.EventSubscriptionExpired, "sub_1", nil, subAttrs("expired", nil))

		require.NoError(t, f.deliver(t, expired))
		first := f.getUser(t, u.ID).Subscription
		require.NotNil(t, first.CancelledAt)
		assert.True(t, now.Equal(*first.CancelledAt))

		require.NoError(t, f.deliver(t, expired))
		assert.Equal(t, first, f.getUser(t, u.ID).Subscription)
	})
}
