package billing

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

type receiptLine struct {
	Name     string
	Quantity int
	Total    string
}

type receiptData struct {
	Name         string
	OrderID      string
	Lines        []receiptLine
	Shipping     string
	Total        string
	Subscription bool
	OrderURL     string
	StoreName    string
}

// receipt is the payment receipt e-mail body. Every value is escaped.
func receipt(d receiptData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		esc := templ.EscapeString[string]
		p := &receiptWriter{w: w}

		p.printf(`<!doctype html><html><body style="font-family:sans-serif">`)
		p.printf(`<h2>Thank you for your order, %s!</h2>`, esc(d.Name))
		p.printf(`<p>We received your payment for order <strong>%s</strong>.</p>`, esc(d.OrderID))
		p.printf(`<table cellpadding="6" style="border-collapse:collapse">`)
		for _, l := range d.Lines {
			p.printf(`<tr><td>%s &times; %d</td><td align="right">%s</td></tr>`, esc(l.Name), l.Quantity, esc(l.Total))
		}
		p.printf(`<tr><td>Shipping</td><td align="right">%s</td></tr>`, esc(d.Shipping))
		p.printf(`<tr><td><strong>Total</strong></td><td align="right"><strong>%s</strong></td></tr>`, esc(d.Total))
		p.printf(`</table>`)
		if d.Subscription {
			p.printf(`<p>Your subscription is active. You can manage it from your dashboard.</p>`)
		}
		p.printf(`<p><a href="%s">View your order</a></p>`, esc(string(templ.URL(d.OrderURL))))
		p.printf(`<p>%s</p></body></html>`, esc(d.StoreName))
		return p.err
	})
}

// receiptWriter keeps the first write error so the markup reads top to bottom.
type receiptWriter struct {
	w   io.Writer
	err error
}

func (p *receiptWriter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
