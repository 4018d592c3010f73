package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/storefront/handler"
	"github.com/dmitrymomot/storefront/pkg/clientip"
	"github.com/dmitrymomot/storefront/pkg/email"
	"github.com/dmitrymomot/storefront/pkg/httpserver"
	"github.com/dmitrymomot/storefront/pkg/idempotency"
	"github.com/dmitrymomot/storefront/pkg/lemonsqueezy"
	"github.com/dmitrymomot/storefront/pkg/logger"
	"github.com/dmitrymomot/storefront/pkg/metrics"
	mongox "github.com/dmitrymomot/storefront/pkg/mongo"
	"github.com/dmitrymomot/storefront/pkg/ratelimiter"
	redisx "github.com/dmitrymomot/storefront/pkg/redis"
	"github.com/dmitrymomot/storefront/pkg/requestid"
	"github.com/dmitrymomot/storefront/pkg/validator"
	"github.com/dmitrymomot/storefront/svc/account"
	"github.com/dmitrymomot/storefront/svc/billing"
	"github.com/dmitrymomot/storefront/svc/catalog"
	"github.com/dmitrymomot/storefront/svc/checkout"
	"github.com/dmitrymomot/storefront/svc/order"
	"github.com/dmitrymomot/storefront/svc/store/memstore"
	"github.com/dmitrymomot/storefront/svc/store/mongostore"
)

// recordStore is what the services share. Both store drivers implement it.
type recordStore interface {
	catalog.Store
	account.Store
	order.Store
	billing.Store
}

type healthcheck = func(context.Context) error

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadSettings()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logOpts := []logger.Option{
		logger.WithEnvironment(cfg.app.Env, cfg.app.Name),
		logger.WithContextExtractors(requestid.LogExtractor(), account.LogExtractor()),
	}
	if cfg.app.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.app.LogLevel)); err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
		logOpts = append(logOpts, logger.WithLevel(level))
	}
	log := logger.New(logOpts...)

	var checks []healthcheck

	store, storeChecks, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	checks = append(checks, storeChecks...)

	limiterStore, keys, redisChecks, closeRedis, err := openRedis(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRedis()
	checks = append(checks, redisChecks...)

	limiter, err := ratelimiter.New(limiterStore, cfg.limits)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	gateway, err := lemonsqueezy.New(cfg.gateway)
	if err != nil {
		return fmt.Errorf("lemonsqueezy client: %w", err)
	}

	sender, err := email.New(cfg.email)
	if err != nil {
		return fmt.Errorf("email sender: %w", err)
	}
	receipts, err := billing.NewReceiptNotifier(sender, cfg.receipt)
	if err != nil {
		return fmt.Errorf("receipt notifier: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry, cfg.metrics)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	products := catalog.NewService(store, log)
	if cfg.app.CatalogSeedFile != "" {
		if err := seedCatalog(ctx, products, cfg.app.CatalogSeedFile, log); err != nil {
			return err
		}
	}

	verifier, err := account.NewVerifierFromConfig(cfg.identity)
	if err != nil {
		return fmt.Errorf("identity verifier: %w", err)
	}

	a := &app{
		log:      log,
		store:    store,
		products: products,
		gateway:  gateway,
		verifier: verifier,
		keys:     keys,
		limiter:  limiter,
		metrics:  m,
		registry: registry,
		notifier: receipts,
		orders:   cfg.orders,
		checkout: cfg.checkout,
		checks:   checks,
	}

	srv := httpserver.New(cfg.http, httpserver.WithLogger(log))
	return srv.Run(ctx, a.router())
}

// app holds the wired dependencies the router is built from.
type app struct {
	log      *slog.Logger
	store    recordStore
	products *catalog.Service
	gateway  *lemonsqueezy.Client
	verifier account.IdentityVerifier
	keys     idempotency.Store
	limiter  *ratelimiter.Limiter
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	notifier billing.Notifier
	orders   order.Config
	checkout checkout.Config
	checks   []healthcheck
}

func (a *app) router() http.Handler {
	v := validator.New()
	eh := handler.NewErrorHandler(a.log)
	auth := account.NewAuthenticator(a.verifier, a.store, a.log)

	accounts := account.NewService(a.store, a.log)
	orders := order.NewService(a.store, a.products, a.orders,
		order.WithLogger(a.log), order.WithMetrics(a.metrics))
	sessions := checkout.NewService(a.store, a.gateway, a.checkout,
		checkout.WithLogger(a.log), checkout.WithMetrics(a.metrics))
	reconciler := billing.NewReconciler(a.store, a.gateway,
		billing.WithLogger(a.log), billing.WithMetrics(a.metrics), billing.WithNotifier(a.notifier))
	subscriptions := billing.NewService(a.store, a.gateway,
		billing.WithLogger(a.log), billing.WithMetrics(a.metrics))

	r := chi.NewRouter()
	r.Use(requestid.Middleware, clientip.Middleware, middleware.Recoverer, a.metrics.Middleware)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(a.log, a.checks...))
	r.Handle("/metrics", metrics.Handler(a.registry))

	r.Group(func(r chi.Router) {
		r.Use(ratelimiter.Middleware(a.limiter, limitKey, a.log))

		account.NewHTTPHandler(accounts, auth, v, eh).Routes(r)
		order.NewHTTPHandler(orders, auth, a.keys, v, eh, a.log).Routes(r)
		checkout.NewHTTPHandler(sessions, auth, v, eh).Routes(r)
		billing.NewHTTPHandler(reconciler, subscriptions, auth, eh).Routes(r)
	})

	return r
}

// limitKey limits callers by IP. Gateway deliveries are not limited: a
// throttled webhook is retried and arrives late.
func limitKey(r *http.Request) string {
	if r.URL.Path == "/api/webhooks/lemon" {
		return ""
	}
	return clientip.FromContext(r.Context())
}

func openStore(ctx context.Context, cfg settings) (recordStore, []healthcheck, func(), error) {
	if cfg.app.StoreDriver == storeMemory {
		return memstore.New(), nil, func() {}, nil
	}

	client, err := mongox.New(ctx, cfg.mongo)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("mongodb: %w", err)
	}
	closeFn := func() { _ = client.Disconnect(context.Background()) }

	store, err := mongostore.New(ctx, client, cfg.mongo)
	if err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("mongodb store: %w", err)
	}
	return store, []healthcheck{mongox.Healthcheck(client)}, closeFn, nil
}

func openRedis(ctx context.Context, cfg settings, log *slog.Logger) (ratelimiter.Store, idempotency.Store, []healthcheck, func(), error) {
	if !cfg.app.RedisEnabled {
		log.WarnContext(ctx, "redis disabled, rate limits and idempotency keys are kept in memory")
		return ratelimiter.NewMemoryStore(), idempotency.NewMemoryStore(cfg.idempotency.TTL), nil, func() {}, nil
	}

	client, err := redisx.Connect(ctx, cfg.redis)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("redis: %w", err)
	}
	closeFn := func() { _ = client.Close() }

	return ratelimiter.NewRedisStore(client, "ratelimit:"),
		idempotency.NewRedisStore(client, cfg.idempotency),
		[]healthcheck{redisx.Healthcheck(client)},
		closeFn,
		nil
}

func seedCatalog(ctx context.Context, products *catalog.Service, path string, log *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog seed: %w", err)
	}
	defer f.Close()

	n, err := products.Seed(ctx, f)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	log.InfoContext(ctx, "catalog seeded", slog.Int("products", n), slog.String("file", path))
	return nil
}
