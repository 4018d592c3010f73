package billing

import "errors"

var (
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrMalformedPayload     = errors.New("malformed webhook payload")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNoSubscription       = errors.New("no active subscription")
	ErrGatewayFailure       = errors.New("payment gateway request failed")
)
