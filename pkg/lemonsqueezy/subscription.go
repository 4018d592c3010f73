package lemonsqueezy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

type subscriptionPatch struct {
	Data struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		Attributes struct {
			Cancelled bool `json:"cancelled"`
		} `json:"attributes"`
	} `json:"data"`
}

// CancelSubscription asks Lemon Squeezy to cancel the subscription at the end
// of the current billing period.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return fmt.Errorf("%w: subscription id is required", ErrInvalidParams)
	}

	var body subscriptionPatch
	body.Data.Type = "subscriptions"
	body.Data.ID = subscriptionID
	body.Data.Attributes.Cancelled = true

	return c.do(ctx, http.MethodPatch, "/subscriptions/"+url.PathEscape(subscriptionID), body, nil)
}
