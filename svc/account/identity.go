package account

import (
	"context"
	"errors"

	"github.com/dmitrymomot/storefront/pkg/jwt"
)

// Identity is a verified caller as reported by the identity provider.
type Identity struct {
	Subject string
	Email   string
}

// IdentityVerifier turns a bearer credential into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// JWTVerifier verifies HS256 tokens signed with the identity provider secret.
type JWTVerifier struct {
	tokens *jwt.Service
}

func NewJWTVerifier(tokens *jwt.Service) *JWTVerifier {
	return &JWTVerifier{tokens: tokens}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	claims, err := v.tokens.Parse(token)
	if err != nil {
		return Identity{}, errors.Join(ErrUnauthenticated, err)
	}
	return Identity{Subject: claims.Subject, Email: claims.Email}, nil
}

// IdentityConfig configures the token verifier.
type IdentityConfig struct {
	SigningKey string `env:"IDENTITY_JWT_SECRET,required"`
	Issuer     string `env:"IDENTITY_JWT_ISSUER"`
	Audience   string `env:"IDENTITY_JWT_AUDIENCE"`
}

// NewVerifierFromConfig builds a JWTVerifier from cfg.
func NewVerifierFromConfig(cfg IdentityConfig) (*JWTVerifier, error) {
	var opts []jwt.Option
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	tokens, err := jwt.New(cfg.SigningKey, opts...)
	if err != nil {
		return nil, err
	}
	return NewJWTVerifier(tokens), nil
}
