package lemonsqueezy

import (
	"context"
	"fmt"
	"net/http"
)

// CheckoutParams describes a hosted checkout for one variant.
type CheckoutParams struct {
	VariantID   string
	Email       string
	RedirectURL string
	// Custom is echoed back in webhook meta.custom_data.
	Custom map[string]string
	// CustomPrice overrides the variant price, in minor currency units.
	CustomPrice *int64
}

// Price is a helper for CheckoutParams.CustomPrice.
func Price(minor int64) *int64 { return &minor }

type resourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type relationship struct {
	Data resourceIdentifier `json:"data"`
}

type checkoutRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			CheckoutData struct {
				Email  string            `json:"email"`
				Custom map[string]string `json:"custom"`
			} `json:"checkout_data"`
			ProductOptions struct {
				RedirectURL string `json:"redirect_url,omitempty"`
			} `json:"product_options"`
			CustomPrice *int64 `json:"custom_price,omitempty"`
		} `json:"attributes"`
		Relationships struct {
			Store   relationship `json:"store"`
			Variant relationship `json:"variant"`
		} `json:"relationships"`
	} `json:"data"`
}

// Checkout is the created checkout resource.
type Checkout struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"-"`
	CheckoutURL string `json:"-"`
	EmbedURL    string `json:"-"`
}

// RedirectURL returns the first non-empty of url, checkout_url and embed_url.
func (c *Checkout) RedirectURL() string {
	for _, u := range []string{c.URL, c.CheckoutURL, c.EmbedURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

type checkoutResponse struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			URL         string `json:"url"`
			CheckoutURL string `json:"checkout_url"`
			EmbedURL    string `json:"embed_url"`
		} `json:"attributes"`
	} `json:"data"`
}

// CreateCheckout creates a hosted checkout in the configured store.
func (c *Client) CreateCheckout(ctx context.Context, p CheckoutParams) (*Checkout, error) {
	if p.VariantID == "" {
		return nil, fmt.Errorf("%w: variant id is required", ErrInvalidParams)
	}
	if p.CustomPrice != nil && *p.CustomPrice <= 0 {
		return nil, fmt.Errorf("%w: custom price must be greater than zero", ErrInvalidParams)
	}

	var body checkoutRequest
	body.Data.Type = "checkouts"
	body.Data.Attributes.CheckoutData.Email = p.Email
	body.Data.Attributes.CheckoutData.Custom = p.Custom
	if body.Data.Attributes.CheckoutData.Custom == nil {
		body.Data.Attributes.CheckoutData.Custom = map[string]string{}
	}
	body.Data.Attributes.ProductOptions.RedirectURL = p.RedirectURL
	body.Data.Attributes.CustomPrice = p.CustomPrice
	body.Data.Relationships.Store.Data = resourceIdentifier{Type: "stores", ID: c.cfg.StoreID}
	body.Data.Relationships.Variant.Data = resourceIdentifier{Type: "variants", ID: p.VariantID}

	var resp checkoutResponse
	if err := c.do(ctx, http.MethodPost, "/checkouts", body, &resp); err != nil {
		return nil, err
	}
	if resp.Data.ID == "" {
		return nil, fmt.Errorf("%w: checkout id missing", ErrInvalidResponse)
	}

	return &Checkout{
		ID:          resp.Data.ID,
		Type:        resp.Data.Type,
		URL:         resp.Data.Attributes.URL,
		CheckoutURL: resp.Data.Attributes.CheckoutURL,
		EmbedURL:    resp.Data.Attributes.EmbedURL,
	}, nil
}
