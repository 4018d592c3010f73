package checkout

import (
	"errors"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/storefront/handler"
	"github.com/dmitrymomot/storefront/pkg/binder"
	"github.com/dmitrymomot/storefront/pkg/validator"
	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/order"
)

type HTTPHandler struct {
	svc          *Service
	auth         *account.Authenticator
	validate     *validator.Validator
	errorHandler handler.ErrorHandler[handler.Context]
}

func NewHTTPHandler(svc *Service, auth *account.Authenticator, v *validator.Validator, eh handler.ErrorHandler[handler.Context]) *HTTPHandler {
	return &HTTPHandler{svc: svc, auth: auth, validate: v, errorHandler: eh}
}

func (h *HTTPHandler) Routes(r chi.Router) {
	r.Post("/api/payments/lemon/one-time", handler.Wrap(h.oneTime,
		handler.WithBinders[handler.Context, StartRequest](binder.JSON(), h.validate.Bind()),
		handler.WithErrorHandler[handler.Context, StartRequest](h.errorHandler),
	))
	r.With(h.auth.RequireUser).Post("/api/payments/lemon/subscription", handler.Wrap(h.subscription,
		handler.WithBinders[handler.Context, StartRequest](binder.JSON(), h.validate.Bind()),
		handler.WithErrorHandler[handler.Context, StartRequest](h.errorHandler),
	))
}

type StartRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

type StartResponse struct {
	URL string `json:"url"`
}

func (h *HTTPHandler) oneTime(ctx handler.Context, req StartRequest) handler.Response {
	redirect, err := h.svc.StartOneTime(ctx, req.OrderID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(StartResponse{URL: redirect})
}

func (h *HTTPHandler) subscription(ctx handler.Context, req StartRequest) handler.Response {
	u, _ := account.UserFromContext(ctx)
	redirect, err := h.svc.StartSubscription(ctx, req.OrderID, u)
	if err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(StartResponse{URL: redirect})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrMissingOrderID):
		return errors.Join(handler.ErrBadRequest.WithMessage("Missing orderId"), err)
	case errors.Is(err, order.ErrOrderNotFound):
		return errors.Join(handler.ErrNotFound.WithMessage("Order not found"), err)
	case errors.Is(err, ErrOrderTypeMismatch):
		return errors.Join(handler.ErrInvalidState.WithMessage("Order type does not match this checkout"), err)
	case errors.Is(err, ErrOrderNotPending):
		return errors.Join(handler.ErrInvalidState.WithMessage("Order is no longer awaiting payment"), err)
	case errors.Is(err, ErrForbidden):
		return errors.Join(handler.ErrForbidden.WithMessage("Order belongs to another user"), err)
	case errors.Is(err, ErrNotConfigured):
		return errors.Join(handler.ErrBadRequest.WithMessage("Checkout is not configured"), err)
	case errors.Is(err, ErrInvalidAmount):
		return errors.Join(handler.ErrBadRequest.WithMessage("Order total must be greater than zero"), err)
	case errors.Is(err, account.ErrUnauthenticated):
		return errors.Join(handler.ErrUnauthorized, err)
	case errors.Is(err, ErrGatewayFailure), errors.Is(err, ErrNoCheckoutURL):
		return errors.Join(handler.ErrInternalServerError.WithMessage("Failed to create checkout"), err)
	}
	return err
}
