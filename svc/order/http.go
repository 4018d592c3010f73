package order

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/storefront/handler"
	"github.com/dmitrymomot/storefront/pkg/binder"
	"github.com/dmitrymomot/storefront/pkg/idempotency"
	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/pkg/validator"
	"github.com/dmitrymomot/storefront/svc/account"
)

const (
	GuestIDHeader        = "Guest-Id"
	IdempotencyKeyHeader = "Idempotency-Key"
)

type HTTPHandler struct {
	svc          *Service
	auth         *account.Authenticator
	keys         idempotency.Store
	validate     *validator.Validator
	errorHandler handler.ErrorHandler[handler.Context]
	log          *slog.Logger
}

// NewHTTPHandler builds the order endpoints. keys may be nil, in which case
// the Idempotency-Key header is ignored.
func NewHTTPHandler(
	svc *Service,
	auth *account.Authenticator,
	keys idempotency.Store,
	v *validator.Validator,
	eh handler.ErrorHandler[handler.Context],
	log *slog.Logger,
) *HTTPHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &HTTPHandler{svc: svc, auth: auth, keys: keys, validate: v, errorHandler: eh, log: log}
}

func (h *HTTPHandler) Routes(r chi.Router) {
	r.With(h.auth.OptionalUser).Post("/api/orders", handler.Wrap(h.create,
		handler.WithBinders[handler.Context, CreateOrderRequest](binder.JSON(), h.validate.Bind()),
		handler.WithErrorHandler[handler.Context, CreateOrderRequest](h.errorHandler),
	))

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireUser)

		r.Get("/api/orders/mine", handler.Wrap(h.listMine,
			handler.WithErrorHandler[handler.Context, struct{}](h.errorHandler),
		))
		r.Get("/api/dashboard/orders", handler.Wrap(h.listMine,
			handler.WithErrorHandler[handler.Context, struct{}](h.errorHandler),
		))
		r.Get("/api/dashboard/orders/{id}", handler.Wrap(h.getMine,
			handler.WithBinders[handler.Context, OrderPath](binder.Path()),
			handler.WithErrorHandler[handler.Context, OrderPath](h.errorHandler),
		))
	})

	r.Get("/api/orders/{id}", handler.Wrap(h.get,
		handler.WithBinders[handler.Context, OrderPath](binder.Path()),
		handler.WithErrorHandler[handler.Context, OrderPath](h.errorHandler),
	))
}

type CreateOrderItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderBilling struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
	Street    string `json:"street" validate:"required"`
	Apartment string `json:"apartment"`
	City      string `json:"city" validate:"required"`
	Postcode  string `json:"postcode" validate:"required"`
	Country   string `json:"country" validate:"required"`
}

type CreateOrderRequest struct {
	Items          []CreateOrderItem  `json:"items" validate:"required,min=1,dive"`
	Billing        CreateOrderBilling `json:"billing"`
	ShippingMethod string             `json:"shippingMethod" validate:"omitempty,oneof=local_pickup express_3_days"`
	PurchaseType   string             `json:"purchaseType" validate:"omitempty,oneof=one_time subscription"`
}

type OrderIDResponse struct {
	OrderID string `json:"orderId"`
}

func (h *HTTPHandler) create(ctx handler.Context, req CreateOrderRequest) handler.Response {
	r := ctx.Request()
	params := CreateOrderParams{
		ShippingMethod: ShippingMethod(req.ShippingMethod),
		PurchaseType:   Type(req.PurchaseType),
		GuestID:        strings.TrimSpace(r.Header.Get(GuestIDHeader)),
		Billing: BillingDetails{
			FirstName: req.Billing.FirstName,
			LastName:  req.Billing.LastName,
			Email:     req.Billing.Email,
			Phone:     req.Billing.Phone,
			Street:    req.Billing.Street,
			Apartment: req.Billing.Apartment,
			City:      req.Billing.City,
			Postcode:  req.Billing.Postcode,
			Country:   req.Billing.Country,
		},
	}
	if u, ok := account.UserFromContext(ctx); ok {
		params.UserID = u.ID
	}
	for _, it := range req.Items {
		params.Items = append(params.Items, ItemParams{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" || h.keys == nil {
		o, err := h.svc.CreateOrder(ctx, params)
		if err != nil {
			return handler.Error(httpError(err))
		}
		return handler.JSON(OrderIDResponse{OrderID: o.ID}, handler.WithJSONStatus(http.StatusCreated))
	}

	owner := params.UserID
	if owner == "" {
		owner = "guest:" + params.GuestID
	}
	scoped := "orders:" + owner + ":" + key

	rec, created, err := h.keys.Reserve(ctx, scoped)
	if err != nil {
		return handler.Error(err)
	}
	if !created {
		if rec.Status == idempotency.StatusCompleted {
			return handler.JSON(OrderIDResponse{OrderID: rec.Result})
		}
		return handler.Error(httpError(ErrDuplicateRequest))
	}

	o, err := h.svc.CreateOrder(ctx, params)
	if err != nil {
		if relErr := h.keys.Release(ctx, scoped); relErr != nil {
			h.log.WarnContext(ctx, "failed to release idempotency key", logger.Error(relErr))
		}
		return handler.Error(httpError(err))
	}
	if err := h.keys.Complete(ctx, scoped, o.ID); err != nil {
		h.log.WarnContext(ctx, "failed to complete idempotency key", logger.OrderID(o.ID), logger.Error(err))
	}
	return handler.JSON(OrderIDResponse{OrderID: o.ID}, handler.WithJSONStatus(http.StatusCreated))
}

type OrderPath struct {
	ID string `path:"id"`
}

func (h *HTTPHandler) get(ctx handler.Context, req OrderPath) handler.Response {
	o, err := h.svc.GetOrder(ctx, req.ID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(o)
}

func (h *HTTPHandler) listMine(ctx handler.Context, _ struct{}) handler.Response {
	u, _ := account.UserFromContext(ctx)
	orders, err := h.svc.ListUserOrders(ctx, u.ID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(orders)
}

func (h *HTTPHandler) getMine(ctx handler.Context, req OrderPath) handler.Response {
	u, _ := account.UserFromContext(ctx)
	o, err := h.svc.GetUserOrder(ctx, req.ID, u.ID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(o)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return errors.Join(handler.ErrNotFound.WithMessage("Order not found"), err)
	case errors.Is(err, ErrProductNotFound):
		return errors.Join(handler.ErrNotFound.WithMessage("Product not found"), err)
	case errors.Is(err, ErrInvalidOrder):
		return errors.Join(handler.ErrBadRequest.WithMessage(invalidMessage(err)), err)
	case errors.Is(err, ErrOwnerRequired):
		return errors.Join(handler.ErrBadRequest.WithMessage("Guest-Id header is required for guest checkout"), err)
	case errors.Is(err, ErrDuplicateRequest):
		return errors.Join(handler.ErrConflict.WithMessage("Order creation is already in progress"), err)
	}
	return err
}

// invalidMessage returns the reason joined to ErrInvalidOrder.
func invalidMessage(err error) string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !errors.Is(e, ErrInvalidOrder) {
				return e.Error()
			}
		}
	}
	return "Invalid order"
}
