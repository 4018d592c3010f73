// Package metrics holds the Prometheus collectors of the storefront.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeSkipped  = "skipped"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type Config struct {
	ServiceName string `env:"APP_NAME" envDefault:"storefront"`
	Environment string `env:"APP_ENV" envDefault:"development"`
}

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	webhookEvents    *prometheus.CounterVec
	checkoutSessions *prometheus.CounterVec
	ordersCreated    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// New builds the collectors and registers them on registerer.
func New(registerer prometheus.Registerer, cfg Config) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "storefront"
	}
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "unknown"
	}
	constLabels := prometheus.Labels{"service": service, "env": env}

	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "storefront_webhook_events_total",
			Help:        "Payment webhook deliveries by event name and outcome.",
			ConstLabels: constLabels,
		}, []string{"event", "outcome"}),
		checkoutSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "storefront_checkout_sessions_total",
			Help:        "Checkout sessions requested from the payment gateway.",
			ConstLabels: constLabels,
		}, []string{"type", "result"}),
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "storefront_orders_created_total",
			Help:        "Orders created by purchase type.",
			ConstLabels: constLabels,
		}, []string{"type"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "storefront_http_request_duration_seconds",
			Help:        "HTTP request latency by route and status code.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"method", "route", "code"}),
	}

	for _, c := range []prometheus.Collector{m.webhookEvents, m.checkoutSessions, m.ordersCreated, m.requestDuration} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) WebhookEvent(event, outcome string) {
	if m == nil {
		return
	}
	if event == "" {
		event = "none"
	}
	m.webhookEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) CheckoutSession(purchaseType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.checkoutSessions.WithLabelValues(purchaseType, result).Inc()
}

func (m *Metrics) OrderCreated(purchaseType string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(purchaseType).Inc()
}

// Middleware observes request latency labelled by the chi route pattern, so
// path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.requestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
