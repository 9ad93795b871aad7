package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_orders_issued_total",
		Help: "Orders priced, tokenized and persisted, by payment method.",
	}, []string{"method"})

	settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_callbacks_total",
		Help: "Settlement claims processed, by provider and outcome.",
	}, []string{"provider", "outcome"})

	settlementRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_rejections_total",
		Help: "Settlement claims rejected at the trust boundary, by provider and reason.",
	}, []string{"provider", "reason"})
)
