package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const algorithm = "HS256"

type header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

type StandardClaims struct {
	ID        string `json:"jti,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	Audience  string `json:"aud,omitempty"`
	Email     string `json:"email,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// Valid checks the time based claims.
func (c StandardClaims) Valid(now time.Time) error {
	if c.ExpiresAt > 0 && now.Unix() > c.ExpiresAt {
		return ErrExpiredToken
	}
	if c.NotBefore > 0 && now.Unix() < c.NotBefore {
		return ErrInvalidToken
	}
	return nil
}

type Service struct {
	key      []byte
	issuer   string
	audience string
	now      func() time.Time
}

type Option func(*Service)

// WithIssuer rejects tokens whose iss claim differs.
func WithIssuer(iss string) Option {
	return func(s *Service) { s.issuer = iss }
}

// WithAudience rejects tokens whose aud claim differs.
func WithAudience(aud string) Option {
	return func(s *Service) { s.audience = aud }
}

func New(signingKey string, opts ...Option) (*Service, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}
	s := &Service{key: []byte(signingKey), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Generate(claims StandardClaims) (string, error) {
	if claims == (StandardClaims{}) {
		return "", ErrMissingClaims
	}

	h, err := json.Marshal(header{Type: "JWT", Algorithm: algorithm})
	if err != nil {
		return "", fmt.Errorf("jwt: marshal header: %w", err)
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("jwt: marshal claims: %w", err)
	}

	payload := encode(h) + "." + encode(c)
	return payload + "." + encode(s.sign(payload)), nil
}

// Parse verifies the signature and claims of token.
func (s *Service) Parse(token string) (StandardClaims, error) {
	var claims StandardClaims

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return claims, ErrInvalidToken
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return claims, ErrInvalidToken
	}
	if !hmac.Equal(sig, s.sign(parts[0]+"."+parts[1])) {
		return claims, ErrInvalidSignature
	}

	var h header
	if err := decodeJSON(parts[0], &h); err != nil {
		return claims, err
	}
	if h.Algorithm != algorithm {
		return claims, ErrUnexpectedSigningMethod
	}

	if err := decodeJSON(parts[1], &claims); err != nil {
		return claims, err
	}
	if err := claims.Valid(s.now()); err != nil {
		return claims, err
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return claims, ErrInvalidIssuer
	}
	if s.audience != "" && claims.Audience != s.audience {
		return claims, ErrInvalidAudience
	}
	if claims.Subject == "" {
		return claims, errors.Join(ErrInvalidToken, errors.New("missing subject"))
	}
	return claims, nil
}

func (s *Service) sign(payload string) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingBearer
	}
	return strings.TrimSpace(token), nil
}

func encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeJSON(part string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(part)
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	return nil
}
