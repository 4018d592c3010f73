package account

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/storefront/handler"
	"github.com/dmitrymomot/storefront/pkg/binder"
	"github.com/dmitrymomot/storefront/pkg/validator"
)

type HTTPHandler struct {
	svc          *Service
	auth         *Authenticator
	validate     *validator.Validator
	errorHandler handler.ErrorHandler[handler.Context]
}

func NewHTTPHandler(svc *Service, auth *Authenticator, v *validator.Validator, eh handler.ErrorHandler[handler.Context]) *HTTPHandler {
	return &HTTPHandler{svc: svc, auth: auth, validate: v, errorHandler: eh}
}

// Routes registers the account endpoints on r.
func (h *HTTPHandler) Routes(r chi.Router) {
	r.With(h.auth.RequireIdentity).Post("/api/register", handler.Wrap(h.register,
		handler.WithBinders[handler.Context, RegisterRequest](binder.JSON(), h.validate.Bind()),
		handler.WithErrorHandler[handler.Context, RegisterRequest](h.errorHandler),
	))

	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireUser)

		r.Get("/api/dashboard/profile", handler.Wrap(h.profile,
			handler.WithErrorHandler[handler.Context, struct{}](h.errorHandler),
		))
		r.Post("/api/dashboard/profile/update", handler.Wrap(h.updateProfile,
			handler.WithBinders[handler.Context, UpdateProfileRequest](binder.JSON(), h.validate.Bind()),
			handler.WithErrorHandler[handler.Context, UpdateProfileRequest](h.errorHandler),
		))
		r.Get("/api/dashboard/health", handler.Wrap(h.health,
			handler.WithErrorHandler[handler.Context, struct{}](h.errorHandler),
		))
	})
}

type RegisterRequest struct {
	FullName string `json:"fullName" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Age      int    `json:"age" validate:"required,gt=0,max=130"`
	Gender   string `json:"gender" validate:"required"`

	Height      float64 `json:"height" validate:"required,gt=0"`
	Weight      float64 `json:"weight" validate:"required,gt=0"`
	BMI         float64 `json:"bmi" validate:"min=0"`
	Goal        string  `json:"goal" validate:"required"`
	Activity    string  `json:"activity" validate:"required"`
	Conditions  string  `json:"conditions"`
	Diet        string  `json:"diet"`
	SleepHours  float64 `json:"sleepHours" validate:"min=0,max=24"`
	WaterIntake float64 `json:"waterIntake" validate:"min=0"`

	AddressLine1 string `json:"addressLine1" validate:"required"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city" validate:"required"`
	PostalCode   string `json:"postalCode" validate:"required"`
	Country      string `json:"country" validate:"required"`
}

func (h *HTTPHandler) register(ctx handler.Context, req RegisterRequest) handler.Response {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return handler.Error(handler.ErrUnauthorized)
	}

	u, created, err := h.svc.Register(ctx, id, RegisterParams{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Age:      req.Age,
		Gender:   req.Gender,
		Health: HealthProfile{
			Height:      req.Height,
			Weight:      req.Weight,
			BMI:         req.BMI,
			Goal:        req.Goal,
			Activity:    req.Activity,
			Conditions:  req.Conditions,
			Diet:        req.Diet,
			SleepHours:  req.SleepHours,
			WaterIntake: req.WaterIntake,
		},
		Address: Address{
			Line1:      req.AddressLine1,
			Line2:      req.AddressLine2,
			City:       req.City,
			PostalCode: req.PostalCode,
			Country:    req.Country,
		},
	})
	if err != nil {
		return handler.Error(httpError(err))
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return handler.JSON(u, handler.WithJSONStatus(status))
}

func (h *HTTPHandler) profile(ctx handler.Context, _ struct{}) handler.Response {
	current, _ := UserFromContext(ctx)
	u, err := h.svc.GetProfile(ctx, current.ID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(u)
}

type UpdateProfileRequest struct {
	FullName     *string  `json:"fullName" validate:"omitempty,min=1,max=200"`
	Phone        *string  `json:"phone"`
	Age          *int     `json:"age" validate:"omitempty,gt=0,max=130"`
	Gender       *string  `json:"gender"`
	Height       *float64 `json:"height" validate:"omitempty,gt=0"`
	Weight       *float64 `json:"weight" validate:"omitempty,gt=0"`
	Goal         *string  `json:"goal"`
	Activity     *string  `json:"activity"`
	AddressLine1 *string  `json:"addressLine1" validate:"omitempty,min=1"`
	AddressLine2 *string  `json:"addressLine2"`
	City         *string  `json:"city" validate:"omitempty,min=1"`
	PostalCode   *string  `json:"postalCode" validate:"omitempty,min=1"`
	Country      *string  `json:"country" validate:"omitempty,min=1"`
}

func (h *HTTPHandler) updateProfile(ctx handler.Context, req UpdateProfileRequest) handler.Response {
	current, _ := UserFromContext(ctx)
	u, err := h.svc.UpdateProfile(ctx, current.ID, ProfileUpdate{
		FullName:   req.FullName,
		Phone:      req.Phone,
		Age:        req.Age,
		Gender:     req.Gender,
		Height:     req.Height,
		Weight:     req.Weight,
		Goal:       req.Goal,
		Activity:   req.Activity,
		Line1:      req.AddressLine1,
		Line2:      req.AddressLine2,
		City:       req.City,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	})
	if err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(u)
}

func (h *HTTPHandler) health(ctx handler.Context, _ struct{}) handler.Response {
	current, _ := UserFromContext(ctx)
	hp, err := h.svc.GetHealth(ctx, current.ID)
	if err != nil {
		return handler.Error(httpError(err))
	}
	return handler.JSON(hp)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return errors.Join(handler.ErrNotFound.WithMessage("User not found"), err)
	case errors.Is(err, ErrEmailTaken):
		return errors.Join(handler.ErrConflict.WithMessage("Email is already registered"), err)
	case errors.Is(err, ErrPhoneTaken):
		return errors.Join(handler.ErrConflict.WithMessage("Phone number is already registered"), err)
	case errors.Is(err, ErrUserExists):
		return errors.Join(handler.ErrConflict.WithMessage("User already exists"), err)
	case errors.Is(err, ErrInvalidPhone):
		return errors.Join(handler.ErrBadRequest.WithMessage("phone must be a non-empty E.164 compliant string"), err)
	case errors.Is(err, ErrInvalidProfile):
		return errors.Join(handler.ErrBadRequest.WithMessage("Invalid profile"), err)
	case errors.Is(err, ErrUnauthenticated):
		return errors.Join(handler.ErrUnauthorized, err)
	}
	return err
}
