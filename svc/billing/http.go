package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/storefront/handler"
	"github.com/dmitrymomot/storefront/pkg/lemonsqueezy"
	"github.com/dmitrymomot/storefront/svc/account"
)

const maxWebhookBody = 1 << 20

type HTTPHandler struct {
	reconciler   *Reconciler
	svc          *Service
	auth         *account.Authenticator
	errorHandler handler.ErrorHandler[handler.Context]
}

func NewHTTPHandler(reconciler *Reconciler, svc *Service, auth *account.Authenticator, eh handler.ErrorHandler[handler.Context]) *HTTPHandler {
	return &HTTPHandler{reconciler: reconciler, svc: svc, auth: auth, errorHandler: eh}
}

func (h *HTTPHandler) Routes(r chi.Router) {
	r.Post("/api/webhooks/lemon", handler.Wrap(h.webhook,
		handler.WithErrorHandler[handler.Context, struct{}](h.errorHandler),
	))

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireUser)

		r.Get("/api/dashboard/subscription", handler.Wrap(h.subscription,
			handler.WithErrorHandler[handler.Context, struct{}](h.errorHandler),
		))
		r.Post("/api/dashboard/subscription/cancel", handler.Wrap(h.cancel,
			handler.WithErrorHandler[handler.Context, struct{}](h.errorHandler),
		))
	})
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

// webhook reads the body itself: the signature covers the exact bytes, so
// nothing may decode or normalize them first.
func (h *HTTPHandler) webhook(ctx handler.Context, _ struct{}) handler.Response {
	r := ctx.Request()
	raw, err := io.ReadAll(http.MaxBytesReader(ctx.ResponseWriter(), r.Body, maxWebhookBody))
	if err != nil {
		return handler.Error(errors.Join(handler.ErrBadRequest.WithMessage("Failed to read webhook body"), err))
	}

	if err := h.reconciler.HandleWebhook(ctx, raw, r.Header.Get(lemonsqueezy.SignatureHeader)); err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(WebhookResponse{Received: true})
}

type SubscriptionResponse struct {
	Subscription *account.SubscriptionSummary `json:"subscription"`
}

func (h *HTTPHandler) subscription(ctx handler.Context, _ struct{}) handler.Response {
	u, _ := account.UserFromContext(ctx)
	summary, err := h.svc.GetSubscription(ctx, u.ID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(SubscriptionResponse{Subscription: summary})
}

func (h *HTTPHandler) cancel(ctx handler.Context, _ struct{}) handler.Response {
	u, _ := account.UserFromContext(ctx)
	summary, err := h.svc.CancelSubscription(ctx, u.ID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(SubscriptionResponse{Subscription: summary})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidSignature):
		return errors.Join(handler.ErrUnauthorized.WithMessage("Invalid Lemon Squeezy signature"), err)
	case errors.Is(err, ErrMalformedPayload):
		return errors.Join(handler.ErrInternalServerError.WithMessage("Failed to process webhook"), err)
	case errors.Is(err, ErrNoSubscription):
		return errors.Join(handler.ErrNotFound.WithMessage("No active subscription"), err)
	case errors.Is(err, account.ErrUserNotFound):
		return errors.Join(handler.ErrNotFound.WithMessage("User not found"), err)
	case errors.Is(err, ErrGatewayFailure):
		return errors.Join(handler.ErrInternalServerError.WithMessage("Failed to cancel subscription"), err)
	}
	return err
}
