package middleware

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/ratelimit"
)

var rateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rate_limited_total",
	Help: "Order intake requests refused by the rate limiter.",
})

// RateLimit admits requests per client IP. Mount it after chi's RealIP so
// RemoteAddr carries the forwarded address. A limiter backend failure lets
// the request through.
func RateLimit(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r.RemoteAddr)

			err := limiter.Admit(r.Context(), client)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, ratelimit.ErrRateLimited):
				rateLimited.Inc()
				slog.WarnContext(r.Context(), "order intake rate limited", "client", client)
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many booking attempts, try again later")
			default:
				slog.ErrorContext(r.Context(), "rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
			}
		})
	}
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
