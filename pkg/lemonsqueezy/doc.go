// Package lemonsqueezy is a small client for the Lemon Squeezy JSON:API.
//
// It covers what the storefront needs: creating hosted checkouts, cancelling
// subscriptions, verifying webhook signatures and decoding webhook payloads.
//
//	client, err := lemonsqueezy.New(cfg)
//	checkout, err := client.CreateCheckout(ctx, lemonsqueezy.CheckoutParams{
//		VariantID:   "12345",
//		Email:       "buyer@example.com",
//		RedirectURL: "https://shop.example/checkout/success?orderId=42",
//		Custom:      map[string]string{"orderId": "42"},
//		CustomPrice: lemonsqueezy.Price(2500),
//	})
//	url := checkout.RedirectURL()
//
// VerifySignature must be called with the raw request body, before it is
// decoded: the signature covers the exact bytes Lemon Squeezy sent.
package lemonsqueezy
