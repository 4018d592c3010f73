package account

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/storefront/handler"
	"github.com/dmitrymomot/storefront/pkg/jwt"
	"github.com/dmitrymomot/storefront/pkg/logger"
)

var (
	userCtxKey     = handler.NewContextKey("account.user")
	identityCtxKey = handler.NewContextKey("account.identity")
)

// UserFromContext returns the registered user resolved for the request.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := handler.ContextValueOK[*User](ctx, userCtxKey)
	return u, ok && u != nil
}

// IdentityFromContext returns the verified identity of the request.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	return handler.ContextValueOK[Identity](ctx, identityCtxKey)
}

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey, u)
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, id)
}

// LogExtractor adds user_id to log records written with a request context.
func LogExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if u, ok := UserFromContext(ctx); ok {
			return logger.UserID(u.ID), true
		}
		return slog.Attr{}, false
	}
}

// Authenticator resolves the bearer credential of a request to an identity
// and, where registered, a user.
type Authenticator struct {
	verifier IdentityVerifier
	users    Store
	log      *slog.Logger
}

func NewAuthenticator(verifier IdentityVerifier, users Store, log *slog.Logger) *Authenticator {
	if log == nil {
		log = logger.Nop()
	}
	return &Authenticator{verifier: verifier, users: users, log: log.With(logger.Component("auth"))}
}

func (a *Authenticator) resolve(r *http.Request) (Identity, *User, error) {
	token, err := jwt.BearerToken(r)
	if err != nil {
		return Identity{}, nil, errors.Join(ErrUnauthenticated, err)
	}
	id, err := a.verifier.Verify(r.Context(), token)
	if err != nil {
		return Identity{}, nil, err
	}
	u, err := a.users.GetUserBySubject(r.Context(), id.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return id, nil, ErrIdentityNotLinked
		}
		return id, nil, err
	}
	return id, u, nil
}

// RequireIdentity rejects requests without a verified identity. The user does
// not have to be registered yet.
func (a *Authenticator) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, u, err := a.resolve(r)
		if err != nil && !errors.Is(err, ErrIdentityNotLinked) {
			a.reject(w, r, err)
			return
		}
		ctx := WithIdentity(r.Context(), id)
		if u != nil {
			ctx = WithUser(ctx, u)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects requests that do not resolve to a registered user.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, u, err := a.resolve(r)
		if err != nil {
			a.reject(w, r, err)
			return
		}
		ctx := WithUser(WithIdentity(r.Context(), id), u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalUser attaches the user when the request carries a valid credential
// of a registered user and otherwise passes the request through anonymously.
func (a *Authenticator) OptionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, u, err := a.resolve(r)
		if err != nil {
			if !errors.Is(err, ErrUnauthenticated) && !errors.Is(err, ErrIdentityNotLinked) {
				a.log.WarnContext(r.Context(), "identity lookup failed", logger.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := WithUser(WithIdentity(r.Context(), id), u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusUnauthorized
	httpErr := handler.ErrUnauthorized.WithMessage("Unauthorized")
	if !errors.Is(err, ErrUnauthenticated) && !errors.Is(err, ErrIdentityNotLinked) {
		status = http.StatusInternalServerError
		httpErr = handler.ErrInternalServerError.WithMessage("Failed to resolve user")
		a.log.ErrorContext(r.Context(), "identity lookup failed", logger.Error(err))
	}

	resp := handler.JSONError(&handler.ErrorDetail{Code: httpErr.Key, Message: httpErr.Message}, handler.WithJSONStatus(status))
	if renderErr := resp.Render(w, r); renderErr != nil {
		a.log.ErrorContext(r.Context(), "failed to render auth error", logger.Error(renderErr))
	}
}
