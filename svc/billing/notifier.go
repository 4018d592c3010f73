package billing

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dmitrymomot/storefront/pkg/email"
	"github.com/dmitrymomot/storefront/pkg/email/templates"
	"github.com/dmitrymomot/storefront/svc/order"
)

// Notifier is told about orders that moved from pending to paid.
type Notifier interface {
	OrderPaid(ctx context.Context, o *order.Order) error
}

type ReceiptConfig struct {
	StoreName string `env:"APP_NAME" envDefault:"storefront"`
	BaseURL   string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`
	Currency  string `env:"STORE_CURRENCY" envDefault:"USD"`
	Locale    string `env:"STORE_LOCALE" envDefault:"en"`
}

// ReceiptNotifier e-mails a payment receipt to the billing address.
type ReceiptNotifier struct {
	sender  email.Sender
	cfg     ReceiptConfig
	unit    currency.Unit
	printer *message.Printer
}

func NewReceiptNotifier(sender email.Sender, cfg ReceiptConfig) (*ReceiptNotifier, error) {
	unit, err := currency.ParseISO(cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("receipt currency %q: %w", cfg.Currency, err)
	}
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		tag = language.English
	}
	return &ReceiptNotifier{
		sender:  sender,
		cfg:     cfg,
		unit:    unit,
		printer: message.NewPrinter(tag),
	}, nil
}

func (n *ReceiptNotifier) OrderPaid(ctx context.Context, o *order.Order) error {
	data := receiptData{
		Name:         strings.TrimSpace(o.Billing.FirstName),
		OrderID:      o.ID,
		Shipping:     n.money(o.ShippingCost),
		Total:        n.money(o.Total),
		Subscription: o.Type == order.TypeSubscription,
		OrderURL:     strings.TrimRight(n.cfg.BaseURL, "/") + "/checkout/success?orderId=" + o.ID,
		StoreName:    n.cfg.StoreName,
	}
	for _, it := range o.Items {
		data.Lines = append(data.Lines, receiptLine{Name: it.Name, Quantity: it.Quantity, Total: n.money(it.LineTotal)})
	}

	body, err := templates.Render(ctx, receipt(data))
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}

	return n.sender.Send(ctx, email.Message{
		To:       o.Billing.Email,
		Subject:  fmt.Sprintf("%s: payment received for order %s", n.cfg.StoreName, o.ID),
		HTMLBody: body,
		Tag:      "payment-receipt",
	})
}

func (n *ReceiptNotifier) money(v float64) string {
	return n.printer.Sprint(currency.Symbol(n.unit.Amount(v)))
}
