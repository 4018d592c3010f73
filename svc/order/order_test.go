package order_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/svc/catalog"
	"github.com/dmitrymomot/storefront/svc/order"
	"github.com/dmitrymomot/storefront/svc/store/memstore"
)

var billing = order.BillingDetails{
	FirstName: "Ada",
	LastName:  "Lovelace",
	Email:     "ada@example.com",
	Phone:     "+447700900123",
	Street:    "12 St James's Square",
	City:      "London",
	Postcode:  "SW1Y 4JH",
	Country:   "GB",
}

type fixture struct {
	store *memstore.Store
	svc   *order.Service
	big   *catalog.Product
	small *catalog.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	f := &fixture{
		store: store,
		svc:   order.NewService(store, catalog.NewService(store, nil), order.Config{ExpressShippingFee: 500}),
		big:   &catalog.Product{Slug: "big", Name: "Big Jar", Price: 1000, Active: true},
		small: &catalog.Product{Slug: "small", Name: "Small Jar", Price: 500, Active: true},
	}
	require.NoError(t, store.UpsertProductBySlug(ctx, f.big))
	require.NoError(t, store.UpsertProductBySlug(ctx, f.small))
	return f
}

func TestCreateOrder_Totals(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.CreateOrder(ctx, order.CreateOrderParams{
		Items:   []order.ItemParams{{ProductID: f.big.ID, Quantity: 2}, {ProductID: f.small.ID, Quantity: 1}},
		Billing: billing,
		GuestID: "guest-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 2500.0, o.Subtotal)
	assert.Equal(t, 0.0, o.ShippingCost)
	assert.Equal(t, 2500.0, o.Total)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.ProviderBankTransfer, o.PaymentProvider)
	assert.Equal(t, order.TypeOneTime, o.Type)
	assert.Equal(t, order.ShippingLocalPickup, o.ShippingMethod)
	assert.Equal(t, int64(250000), o.TotalMinorUnits())
	require.Len(t, o.Items, 2)
	assert.Equal(t, 2000.0, o.Items[0].LineTotal)
	assert.Equal(t, "Big Jar", o.Items[0].Name)

	stored, err := f.svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Subtotal+stored.ShippingCost, stored.Total)
	assert.Equal(t, "guest-1", stored.GuestID)
}

func TestCreateOrder_ExpressShipping(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	o, err := f.svc.CreateOrder(context.Background(), order.CreateOrderParams{
		Items:          []order.ItemParams{{ProductID: f.small.ID, Quantity: 1}},
		Billing:        billing,
		ShippingMethod: order.ShippingExpress,
		PurchaseType:   order.TypeSubscription,
		UserID:         "u1",
		GuestID:        "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, 500.0, o.ShippingCost)
	assert.Equal(t, 1000.0, o.Total)
	assert.Equal(t, order.TypeSubscription, o.Type)
	assert.Empty(t, o.GuestID)
}

func TestCreateOrder_DecimalPrices(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	p := &catalog.Product{Slug: "dime", Name: "Dime Pack", Price: 0.1, Active: true}
	require.NoError(t, f.store.UpsertProductBySlug(ctx, p))

	o, err := f.svc.CreateOrder(ctx, order.CreateOrderParams{
		Items:   []order.ItemParams{{ProductID: p.ID, Quantity: 3}},
		Billing: billing,
		GuestID: "g",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.3, o.Total)
	assert.Equal(t, int64(30), o.TotalMinorUnits())
}

func TestCreateOrder_Rejects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	item := []order.ItemParams{{ProductID: f.big.ID, Quantity: 1}}

	inactive := &catalog.Product{Slug: "gone", Name: "Gone", Price: 3, Active: false}
	require.NoError(t, f.store.UpsertProductBySlug(ctx, inactive))

	noEmail := billing
	noEmail.Email = " "

	tests := []struct {
		name   string
		params order.CreateOrderParams
		want   error
	}{
		{"no owner", order.CreateOrderParams{Items: item, Billing: billing}, order.ErrOwnerRequired},
		{"empty cart", order.CreateOrderParams{Billing: billing, GuestID: "g"}, order.ErrInvalidOrder},
		{"zero quantity", order.CreateOrderParams{Items: []order.ItemParams{{ProductID: f.big.ID}}, Billing: billing, GuestID: "g"}, order.ErrInvalidOrder},
		{"missing billing field", order.CreateOrderParams{Items: item, Billing: noEmail, GuestID: "g"}, order.ErrInvalidOrder},
		{"unknown shipping", order.CreateOrderParams{Items: item, Billing: billing, GuestID: "g", ShippingMethod: "drone"}, order.ErrInvalidOrder},
		{"unknown product", order.CreateOrderParams{Items: []order.ItemParams{{ProductID: "nope", Quantity: 1}}, Billing: billing, GuestID: "g"}, order.ErrProductNotFound},
		{"inactive product", order.CreateOrderParams{Items: []order.ItemParams{{ProductID: inactive.ID, Quantity: 1}}, Billing: billing, GuestID: "g"}, order.ErrProductNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(ctx, tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUserOrders(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	mine, err := f.svc.CreateOrder(ctx, order.CreateOrderParams{Items: []order.ItemParams{{ProductID: f.big.ID, Quantity: 1}}, Billing: billing, UserID: "u1"})
	require.NoError(t, err)
	theirs, err := f.svc.CreateOrder(ctx, order.CreateOrderParams{Items: []order.ItemParams{{ProductID: f.big.ID, Quantity: 1}}, Billing: billing, UserID: "u2"})
	require.NoError(t, err)

	list, err := f.svc.ListUserOrders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	_, err = f.svc.GetUserOrder(ctx, theirs.ID, "u1")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	empty, err := f.svc.ListUserOrders(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMatchesPayment(t *testing.T) {
	t.Parallel()

	o := &order.Order{Status: order.StatusPending, PaymentProvider: order.ProviderLemonOneTime, PaymentReference: "chk_1"}
	assert.True(t, o.MatchesPayment(order.Payment{Provider: order.ProviderLemonOneTime, Reference: "chk_1"}))
	assert.False(t, o.MatchesPayment(order.Payment{Provider: order.ProviderLemonOneTime, Reference: "chk_2"}))
	assert.True(t, o.MatchesPayment(order.Payment{Provider: order.ProviderLemonOneTime, Reference: "chk_2", Claimed: true}))
	assert.False(t, o.MatchesPayment(order.Payment{Provider: order.ProviderLemonSubscription, Reference: "chk_1"}))

	o.Status = order.StatusPaid
	assert.True(t, o.MatchesPayment(order.Payment{Provider: order.ProviderLemonOneTime, Reference: "chk_1"}))
	assert.True(t, o.MatchesPayment(order.Payment{Provider: order.ProviderLemonOneTime, Reference: "chk_1", Claimed: true}))
	assert.False(t, o.MatchesPayment(order.Payment{Provider: order.ProviderLemonOneTime, Reference: "chk_2", Claimed: true}))

	o.Status = order.StatusCancelled
	assert.False(t, o.MatchesPayment(order.Payment{Provider: order.ProviderLemonOneTime, Reference: "chk_1"}))

	for _, s := range []order.Status{order.StatusPaid, order.StatusFailed, order.StatusCancelled} {
		assert.False(t, order.Transitions.Can(s, order.StatusPending), s)
	}
}
