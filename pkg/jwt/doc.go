// Package jwt signs and verifies compact HS256 JSON Web Tokens.
//
// The storefront does not issue user tokens itself; the identity provider
// does, with a shared signing secret. Service.Parse verifies those tokens and
// Service.Generate exists for local tooling and tests.
package jwt
