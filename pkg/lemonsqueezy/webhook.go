package lemonsqueezy

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Webhook event names sent in meta.event_name.
const (
	EventOrderPaid                  = "order_paid"
	EventSubscriptionCreated        = "subscription_created"
	EventSubscriptionUpdated        = "subscription_updated"
	EventSubscriptionResumed        = "subscription_resumed"
	EventSubscriptionPaymentSuccess = "subscription_payment_success"
	EventSubscriptionPaymentFailed  = "subscription_payment_failed"
	EventSubscriptionCancelled      = "subscription_cancelled"
	EventSubscriptionExpired        = "subscription_expired"
)

// WebhookPayload is the body of a webhook delivery. Every field is optional on
// the wire.
type WebhookPayload struct {
	Meta Meta         `json:"meta"`
	Data *WebhookData `json:"data"`
}

type Meta struct {
	EventName  string     `json:"event_name"`
	CustomData CustomData `json:"custom_data"`
}

type WebhookData struct {
	ID            string               `json:"id"`
	Type          string               `json:"type"`
	Attributes    WebhookAttributes    `json:"attributes"`
	Relationships WebhookRelationships `json:"relationships"`
}

type WebhookAttributes struct {
	Status       string        `json:"status"`
	RenewsAt     Timestamp     `json:"renews_at"`
	EndsAt       Timestamp     `json:"ends_at"`
	CancelledAt  Timestamp     `json:"cancelled_at"`
	CustomerID   FlexString    `json:"customer_id"`
	CheckoutData *CheckoutData `json:"checkout_data"`
}

type CheckoutData struct {
	Custom CustomData `json:"custom"`
}

type WebhookRelationships struct {
	Order *struct {
		Data *struct {
			ID FlexString `json:"id"`
		} `json:"data"`
	} `json:"order"`
}

// OrderID returns data.relationships.order.data.id, or empty.
func (r WebhookRelationships) OrderID() string {
	if r.Order == nil || r.Order.Data == nil {
		return ""
	}
	return string(r.Order.Data.ID)
}

// ParseWebhook decodes a webhook body. It must only be called after the
// signature over raw has been verified.
func ParseWebhook(raw []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Custom returns meta.custom_data, falling back to the checkout custom data
// stored on the resource.
func (p *WebhookPayload) Custom() CustomData {
	if len(p.Meta.CustomData) > 0 {
		return p.Meta.CustomData
	}
	if p.Data != nil && p.Data.Attributes.CheckoutData != nil && p.Data.Attributes.CheckoutData.Custom != nil {
		return p.Data.Attributes.CheckoutData.Custom
	}
	return CustomData{}
}

// CustomData is the key-value map embedded at checkout. Non-string values are
// kept in their JSON text form.
type CustomData map[string]string

func (c *CustomData) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*c = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(CustomData, len(raw))
	for k, v := range raw {
		var s FlexString
		if err := s.UnmarshalJSON(v); err != nil {
			return err
		}
		if s != "" {
			out[k] = string(s)
		}
	}
	*c = out
	return nil
}

// FlexString accepts a JSON string, number or bool. Null becomes empty.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case b[0] == '{' || b[0] == '[':
		*f = FlexString(b)
	default:
		if n, err := strconv.ParseFloat(string(b), 64); err == nil {
			*f = FlexString(strconv.FormatFloat(n, 'f', -1, 64))
			return nil
		}
		*f = FlexString(b)
	}
	return nil
}

// Timestamp is a lenient RFC 3339 time. Null, empty and unparseable values
// decode to nil without failing the payload.
type Timestamp struct {
	Time *time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	t.Time = nil
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000000Z", "2006-01-02 15:04:05", time.DateOnly} {
		if parsed, err := time.Parse(layout, s); err == nil {
			parsed = parsed.UTC()
			t.Time = &parsed
			return nil
		}
	}
	return nil
}
