package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/pkg/email"
	"github.com/dmitrymomot/storefront/svc/billing"
	"github.com/dmitrymomot/storefront/svc/order"
)

type captureSender struct {
	sent []email.Message
}

func (c *captureSender) Send(_ context.Context, msg email.Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

func TestReceiptNotifier(t *testing.T) {
	t.Parallel()
	sender := &captureSender{}
	n, err := billing.NewReceiptNotifier(sender, billing.ReceiptConfig{
		StoreName: "Vital Shop",
		BaseURL:   "https://shop.example.com/",
		Currency:  "USD",
		Locale:    "en",
	})
	require.NoError(t, err)

	err = n.OrderPaid(context.Background(), &order.Order{
		ID:           "o1",
		Type:         order.TypeOneTime,
		Items:        []order.Item{{Name: "Omega-3 <Fish Oil>", Quantity: 2, LineTotal: 49.8}},
		ShippingCost: 5,
		Total:        54.8,
		Billing:      order.BillingDetails{FirstName: "Ada", Email: "ada@example.com"},
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "payment-receipt", msg.Tag)
	assert.Contains(t, msg.Subject, "o1")
	assert.Contains(t, msg.HTMLBody, "54.80")
	assert.Contains(t, msg.HTMLBody, "Omega-3 &lt;Fish Oil&gt;")
	assert.Contains(t, msg.HTMLBody, "https://shop.example.com/checkout/success?orderId=o1")
}

func TestReceiptNotifier_Subscription(t *testing.T) {
	t.Parallel()
	sender := &captureSender{}
	n, err := billing.NewReceiptNotifier(sender, billing.ReceiptConfig{
		StoreName: "Vital Shop",
		BaseURL:   "javascript:alert(1)//",
		Currency:  "EUR",
		Locale:    "en",
	})
	require.NoError(t, err)

	require.NoError(t, n.OrderPaid(context.Background(), &order.Order{
		ID:      "o2",
		Type:    order.TypeSubscription,
		Total:   19,
		Billing: order.BillingDetails{FirstName: "<b>Ada</b>", Email: "ada@example.com"},
	}))

	require.Len(t, sender.sent, 1)
	body := sender.sent[0].HTMLBody
	assert.Contains(t, body, "Your subscription is active")
	assert.Contains(t, body, "&lt;b&gt;Ada&lt;/b&gt;")
	assert.NotContains(t, body, "javascript:")
}

func TestNewReceiptNotifier_BadCurrency(t *testing.T) {
	t.Parallel()

	_, err := billing.NewReceiptNotifier(&captureSender{}, billing.ReceiptConfig{Currency: "dollars", Locale: "en"})
	assert.Error(t, err)
}
