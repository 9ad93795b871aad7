package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/api/middleware"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/ratelimit"
)

// NewRouter wires the public routes. redisClient may be nil, in which case
// Idempotency-Key is not honoured.
func NewRouter(h *Handlers, limiter ratelimit.Limiter, redisClient redis.Cmdable, idemOpts ...middleware.IdempotencyOption) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondText(w, http.StatusOK, "OK")
	})
	r.Handle("/metrics", promhttp.Handler())

	intake := []func(http.Handler) http.Handler{middleware.RateLimit(limiter)}
	if redisClient != nil {
		intake = append(intake, middleware.Idempotency(redisClient, idemOpts...))
	}
	r.With(intake...).Post("/orders", h.CreateOrder)

	r.Get("/orders/{id}", h.GetOrder)
	r.Get("/orders/{id}/trail", h.GetTrail)

	routes := []string{"POST /orders", "GET /orders/{id}", "GET /orders/{id}/trail"}
	if h.notifyVerifier != nil {
		r.Post("/payments/hostedform/notify", h.HostedFormNotify)
		routes = append(routes, "POST /payments/hostedform/notify")
	}
	if h.webhookVerifier != nil && h.providerOrders != nil {
		r.Post("/webhooks/orderapi", h.OrderAPIWebhook)
		routes = append(routes, "POST /webhooks/orderapi")
	}

	slog.Info("registered routes", "routes", routes)

	return otelhttp.NewHandler(r, "booking-api")
}
