package main

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/storefront/pkg/config"
	"github.com/dmitrymomot/storefront/pkg/email"
	"github.com/dmitrymomot/storefront/pkg/httpserver"
	"github.com/dmitrymomot/storefront/pkg/idempotency"
	"github.com/dmitrymomot/storefront/pkg/lemonsqueezy"
	"github.com/dmitrymomot/storefront/pkg/metrics"
	mongox "github.com/dmitrymomot/storefront/pkg/mongo"
	"github.com/dmitrymomot/storefront/pkg/ratelimiter"
	redisx "github.com/dmitrymomot/storefront/pkg/redis"
	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/billing"
	"github.com/dmitrymomot/storefront/svc/checkout"
	"github.com/dmitrymomot/storefront/svc/order"
)

const (
	storeMongo  = "mongo"
	storeMemory = "memory"
)

var ErrUnknownStoreDriver = errors.New("unknown store driver")

type appConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Name string `env:"APP_NAME" envDefault:"storefront"`
	// LogLevel overrides the level preset of APP_ENV when set.
	LogLevel string `env:"LOG_LEVEL"`
	// StoreDriver is mongo or memory. The memory store loses all records on
	// restart and is meant for local runs.
	StoreDriver  string `env:"STORE_DRIVER" envDefault:"mongo"`
	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"true"`
	// CatalogSeedFile is a YAML product list upserted on startup.
	CatalogSeedFile string `env:"CATALOG_SEED_FILE"`
}

type settings struct {
	app         appConfig
	http        httpserver.Config
	mongo       mongox.Config
	redis       redisx.Config
	limits      ratelimiter.Config
	idempotency idempotency.Config
	gateway     lemonsqueezy.Config
	identity    account.IdentityConfig
	email       email.Config
	receipt     billing.ReceiptConfig
	checkout    checkout.Config
	orders      order.Config
	metrics     metrics.Config
}

func loadSettings() (settings, error) {
	var s settings
	if err := loadInto(&s.app); err != nil {
		return s, err
	}

	err := errors.Join(
		loadInto(&s.http),
		loadInto(&s.limits),
		loadInto(&s.idempotency),
		loadInto(&s.gateway),
		loadInto(&s.identity),
		loadInto(&s.email),
		loadInto(&s.receipt),
		loadInto(&s.checkout),
		loadInto(&s.orders),
		loadInto(&s.metrics),
	)
	if err != nil {
		return s, err
	}

	switch s.app.StoreDriver {
	case storeMongo:
		if err := loadInto(&s.mongo); err != nil {
			return s, err
		}
	case storeMemory:
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownStoreDriver, s.app.StoreDriver)
	}

	if s.app.RedisEnabled {
		if err := loadInto(&s.redis); err != nil {
			return s, err
		}
	}
	return s, nil
}

func loadInto[T any](dst *T) error {
	v, err := config.Load[T]()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
