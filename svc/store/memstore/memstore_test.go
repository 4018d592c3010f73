package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/billing"
	"github.com/dmitrymomot/storefront/svc/order"
	"github.com/dmitrymomot/storefront/svc/store/memstore"
)

func pendingOrder(t *testing.T, s *memstore.Store, typ order.Type, provider order.Provider, ref string) *order.Order {
	t.Helper()
	o := &order.Order{Type: typ, Status: order.StatusPending, UserID: "u1"}
	require.NoError(t, s.CreateOrder(context.Background(), o))
	if provider != "" {
		require.NoError(t, s.AttachPayment(context.Background(), o.ID, provider, ref))
	}
	return o
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.New()
	o := pendingOrder(t, s, order.TypeOneTime, order.ProviderLemonOneTime, "chk_1")

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.MarkPaid(ctx, o.ID, order.Payment{Provider: order.ProviderLemonOneTime, Reference: "chk_1"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
}

func TestMarkPaid_Guard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reference must match unless claimed", func(t *testing.T) {
		s := memstore.New()
		o := pendingOrder(t, s, order.TypeOneTime, order.ProviderLemonOneTime, "chk_1")

		_, err := s.MarkPaid(ctx, o.ID, order.Payment{Provider: order.ProviderLemonOneTime, Reference: "ord_9"})
		require.ErrorIs(t, err, order.ErrPaymentMismatch)

		prev, err := s.MarkPaid(ctx, o.ID, order.Payment{Provider: order.ProviderLemonOneTime, Reference: "ord_9", Claimed: true})
		require.NoError(t, err)
		assert.Equal(t, order.StatusPending, prev.Status)

		got, err := s.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPaid, got.Status)
		assert.Equal(t, "ord_9", got.PaymentReference)

		_, err = s.MarkPaid(ctx, o.ID, order.Payment{Provider: order.ProviderLemonOneTime, Reference: "ord_10", Claimed: true})
		require.ErrorIs(t, err, order.ErrPaymentMismatch)

		got, err = s.GetOrder(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, "ord_9", got.PaymentReference)
	})

	t.Run("wrong provider", func(t *testing.T) {
		s := memstore.New()
		o := pendingOrder(t, s, order.TypeOneTime, order.ProviderBankTransfer, "")

		_, err := s.MarkPaid(ctx, o.ID, order.Payment{Provider: order.ProviderLemonOneTime, Claimed: true})
		require.ErrorIs(t, err, order.ErrPaymentMismatch)
	})

	t.Run("second subscription cannot relink", func(t *testing.T) {
		s := memstore.New()
		o := pendingOrder(t, s, order.TypeSubscription, order.ProviderLemonSubscription, "chk_1")
		p := order.Payment{Provider: order.ProviderLemonSubscription, Reference: "sub_1", SubscriptionID: "sub_1", Claimed: true}

		_, err := s.MarkPaid(ctx, o.ID, p)
		require.NoError(t, err)
		prev, err := s.MarkPaid(ctx, o.ID, p)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPaid, prev.Status)

		p.SubscriptionID, p.Reference = "sub_2", "sub_2"
		_, err = s.MarkPaid(ctx, o.ID, p)
		require.ErrorIs(t, err, order.ErrPaymentMismatch)
	})

	t.Run("missing order", func(t *testing.T) {
		s := memstore.New()
		_, err := s.MarkPaid(ctx, "nope", order.Payment{})
		require.ErrorIs(t, err, order.ErrOrderNotFound)
	})
}

func TestAttachPayment_OnlyPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.New()
	o := pendingOrder(t, s, order.TypeOneTime, order.ProviderLemonOneTime, "chk_1")
	_, err := s.MarkPaid(ctx, o.ID, order.Payment{Provider: order.ProviderLemonOneTime, Reference: "chk_1"})
	require.NoError(t, err)

	err = s.AttachPayment(ctx, o.ID, order.ProviderLemonOneTime, "chk_2")
	assert.ErrorIs(t, err, order.ErrOrderNotPending)
}

func TestAssignOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.New()
	o := &order.Order{Status: order.StatusPending, GuestID: "g1"}
	require.NoError(t, s.CreateOrder(ctx, o))

	require.NoError(t, s.AssignOwner(ctx, o.ID, "u1"))
	require.NoError(t, s.AssignOwner(ctx, o.ID, "u1"))
	assert.ErrorIs(t, s.AssignOwner(ctx, o.ID, "u2"), order.ErrOrderOwnedByOther)
}

func TestListOrdersByUser_NewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		o := &order.Order{UserID: "u1", GuestID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, s.CreateOrder(ctx, o))
	}
	require.NoError(t, s.CreateOrder(ctx, &order.Order{UserID: "u2", CreatedAt: base}))

	list, err := s.ListOrdersByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].GuestID)
	assert.Equal(t, "first", list[2].GuestID)
}

func TestUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.New()

	u := &account.User{Subject: "sub|1", Email: "a@example.com", Phone: "+15550001111"}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NotEmpty(t, u.ID)

	dup := &account.User{Subject: "sub|2", Email: "b@example.com", Phone: "+15550001111"}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), account.ErrUserExists)

	height, weight := 180.0, 81.0
	got, err := s.UpdateUserProfile(ctx, u.ID, account.ProfileUpdate{Height: &height, Weight: &weight})
	require.NoError(t, err)
	assert.Equal(t, 25.0, got.Health.BMI)

	summary := &account.SubscriptionSummary{ID: "sub_1", Status: "active", Active: true}
	require.NoError(t, s.SetSubscriptionSummary(ctx, u.ID, summary))
	summary.Status = "mutated"

	got, err = s.GetUserBySubject(ctx, "sub|1")
	require.NoError(t, err)
	assert.Equal(t, "active", got.Subscription.Status)

	_, err = s.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, account.ErrUserNotFound)
	assert.ErrorIs(t, s.SetSubscriptionSummary(ctx, "nope", summary), account.ErrUserNotFound)
}

func TestUpsertSubscription_KeepsLinks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.New()

	require.NoError(t, s.UpsertSubscription(ctx, &billing.Subscription{ExternalID: "sub_1", UserID: "u1", OrderID: "o1", Status: "active"}))
	require.NoError(t, s.UpsertSubscription(ctx, &billing.Subscription{ExternalID: "sub_1", UserID: "u2", OrderID: "o2", Status: "past_due"}))

	got, err := s.GetSubscriptionByExternalID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "o1", got.OrderID)
	assert.Equal(t, "past_due", got.Status)

	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkSubscriptionCancelled(ctx, "sub_1", at))
	latest, err := s.LatestSubscriptionForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCancelled, latest.Status)
	require.NotNil(t, latest.CancelledAt)
	assert.True(t, at.Equal(*latest.CancelledAt))

	assert.ErrorIs(t, s.MarkSubscriptionCancelled(ctx, "sub_x", at), billing.ErrSubscriptionNotFound)
}
