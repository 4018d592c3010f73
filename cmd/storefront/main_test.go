package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/storefront/pkg/idempotency"
	"github.com/dmitrymomot/storefront/pkg/lemonsqueezy"
	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/pkg/metrics"
	"github.com/dmitrymomot/storefront/pkg/ratelimiter"
	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/catalog"
	"github.com/dmitrymomot/storefront/svc/checkout"
	"github.com/dmitrymomot/storefront/svc/order"
	"github.com/dmitrymomot/storefront/svc/store/memstore"
)

func newTestApp(t *testing.T, limit int, checks ...healthcheck) *app {
	t.Helper()

	store := memstore.New()
	gateway, err := lemonsqueezy.New(lemonsqueezy.Config{
		APIKey:        "key",
		StoreID:       "1",
		WebhookSecret: "whsec",
		BaseURL:       "http://127.0.0.1:0",
		Timeout:       time.Second,
	})
	require.NoError(t, err)

	verifier, err := account.NewVerifierFromConfig(account.IdentityConfig{SigningKey: "test-signing-key-0123456789abcdef"})
	require.NoError(t, err)

	limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(), ratelimiter.Config{Limit: limit, Window: time.Minute})
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry, metrics.Config{ServiceName: "storefront", Environment: "test"})
	require.NoError(t, err)

	return &app{
		log:      logger.Nop(),
		store:    store,
		products: catalog.NewService(store, logger.Nop()),
		gateway:  gateway,
		verifier: verifier,
		keys:     idempotency.NewMemoryStore(time.Hour),
		limiter:  limiter,
		metrics:  m,
		registry: registry,
		orders:   order.Config{ExpressShippingFee: 500},
		checkout: checkout.Config{BaseURL: "http://localhost:3000"},
		checks:   checks,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "192.0.2.10:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter(t *testing.T) {
	t.Parallel()

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()
		rec := get(t, newTestApp(t, 10).router(), "/health/live")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ALIVE", rec.Body.String())
	})

	t.Run("readiness follows checks", func(t *testing.T) {
		t.Parallel()
		ok := get(t, newTestApp(t, 10).router(), "/health/ready")
		assert.Equal(t, http.StatusOK, ok.Code)

		down := func(context.Context) error { return errors.New("connection refused") }
		rec := get(t, newTestApp(t, 10, down).router(), "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("metrics exposes request latency", func(t *testing.T) {
		t.Parallel()
		h := newTestApp(t, 10).router()
		get(t, h, "/health/live")

		rec := get(t, h, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "storefront_http_request_duration_seconds")
	})

	t.Run("api is rate limited per client", func(t *testing.T) {
		t.Parallel()
		h := newTestApp(t, 1).router()

		first := get(t, h, "/api/orders/mine")
		assert.Equal(t, http.StatusUnauthorized, first.Code)

		second := get(t, h, "/api/orders/mine")
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Contains(t, second.Body.String(), "too_many_requests")
	})

	t.Run("webhooks are not rate limited", func(t *testing.T) {
		t.Parallel()
		h := newTestApp(t, 1).router()

		for range 3 {
			req := httptest.NewRequest(http.MethodPost, "/api/webhooks/lemon", strings.NewReader(`{}`))
			req.RemoteAddr = "192.0.2.10:51234"
			req.Header.Set(lemonsqueezy.SignatureHeader, "bad")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			body, _ := io.ReadAll(rec.Body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, string(body))
		}
	})
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LEMONSQUEEZY_API_KEY", "key")
	t.Setenv("LEMONSQUEEZY_STORE_ID", "1")
	t.Setenv("LEMONSQUEEZY_WEBHOOK_SECRET", "whsec")
	t.Setenv("IDENTITY_JWT_SECRET", "test-signing-key-0123456789abcdef")
	t.Setenv("REDIS_ENABLED", "false")
}

// unsetEnv removes key for the rest of the test. Required variables only
// fail when absent, an empty value still counts as set.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadSettings(t *testing.T) {
	t.Run("memory driver needs no database url", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("STORE_DRIVER", "memory")
		unsetEnv(t, "MONGODB_URL")

		s, err := loadSettings()
		require.NoError(t, err)
		assert.Equal(t, storeMemory, s.app.StoreDriver)
		assert.False(t, s.app.RedisEnabled)
		assert.Equal(t, 500.0, s.orders.ExpressShippingFee)
		assert.Equal(t, 24*time.Hour, s.idempotency.TTL)
	})

	t.Run("mongo driver requires database url", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("STORE_DRIVER", "mongo")
		unsetEnv(t, "MONGODB_URL")

		_, err := loadSettings()
		require.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("STORE_DRIVER", "sqlite")

		_, err := loadSettings()
		require.ErrorIs(t, err, ErrUnknownStoreDriver)
	})

	t.Run("variant ids belong to checkout", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("STORE_DRIVER", "memory")
		t.Setenv("LEMONSQUEEZY_ONE_TIME_VARIANT_ID", "111")
		t.Setenv("LEMONSQUEEZY_SUBSCRIPTION_VARIANT_ID", "222")

		s, err := loadSettings()
		require.NoError(t, err)
		assert.Equal(t, "111", s.checkout.OneTimeVariantID)
		assert.Equal(t, "222", s.checkout.SubscriptionVariantID)
		assert.Equal(t, "1", s.gateway.StoreID)
	})

	t.Run("gateway credentials are required", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("STORE_DRIVER", "memory")
		unsetEnv(t, "LEMONSQUEEZY_API_KEY")

		_, err := loadSettings()
		require.Error(t, err)
	})
}
