// Package notifier sends booking confirmations for OrderPaid and
// BookingConfirmed events. Each event is handled once per consumer name,
// recorded in the inbox in the same transaction as the send.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	domainEvent "github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/event"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/inbox"
)

const (
	DefaultConsumerName = "booking-notifier"
	defaultMaxRetries   = 5
)

var (
	confirmationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_confirmations_sent_total",
		Help: "Booking confirmations handed to the mailer, by event type.",
	}, []string{"type"})
	processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "notifier_processing_duration_seconds",
		Help:    "Time taken to handle one event",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})
	messagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_messages_dropped_total",
		Help: "Messages committed without being handled after exhausting retries.",
	})
)

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MessageSource is the subset of the Kafka consumer the loop needs.
type MessageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Notifier struct {
	txManager  Transactor
	inbox      inbox.Repository
	mailer     Mailer
	consumer   string
	maxRetries int
	backoff    func(attempt int) time.Duration
}

func New(txManager Transactor, inboxRepo inbox.Repository, mailer Mailer) *Notifier {
	return &Notifier{
		txManager:  txManager,
		inbox:      inboxRepo,
		mailer:     mailer,
		consumer:   DefaultConsumerName,
		maxRetries: defaultMaxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
	}
}

// Handle processes one message value. Envelopes it cannot read and event
// types it does not care about are acknowledged without effect.
func (n *Notifier) Handle(ctx context.Context, value []byte) error {
	started := time.Now()

	var ev domainEvent.Message
	if err := json.Unmarshal(value, &ev); err != nil {
		slog.ErrorContext(ctx, "failed to unmarshal event envelope", "error", err)
		return nil
	}

	switch ev.Type {
	case domainEvent.TypeOrderPaid, domainEvent.TypeBookingConfirmed:
	default:
		return nil
	}

	var payload domainEvent.BookingPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to unmarshal booking payload", "event_id", ev.ID, "error", err)
		return nil
	}

	var sentNow bool
	err := n.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		isNew, err := n.inbox.SaveIfNotExists(txCtx, n.consumer, ev.ID, ev.Type, ev.CorrelationID)
		if err != nil {
			return fmt.Errorf("inbox save: %w", err)
		}
		if !isNew {
			return nil
		}

		if err := n.mailer.SendConfirmation(txCtx, confirmationFrom(ev.Type, payload)); err != nil {
			return fmt.Errorf("send confirmation: %w", err)
		}
		sentNow = true
		return nil
	})
	if err != nil {
		return err
	}

	if !sentNow {
		slog.InfoContext(ctx, "duplicate event skipped", "event_id", ev.ID, "type", ev.Type)
		return nil
	}

	processingDuration.Observe(time.Since(started).Seconds())
	confirmationsSent.WithLabelValues(ev.Type).Inc()
	slog.InfoContext(ctx, "booking confirmation sent", "type", ev.Type, "order_id", payload.OrderID, "event_id", ev.ID)
	return nil
}

// Run consumes until ctx is done. A message that keeps failing is retried
// with exponential backoff, then committed and dropped.
func (n *Notifier) Run(ctx context.Context, source MessageSource) error {
	slog.Info("notifier started", "consumer", n.consumer)

	for {
		msg, err := source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.ErrorContext(ctx, "failed to fetch message", "error", err)
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		for attempt := 0; attempt <= n.maxRetries; attempt++ {
			if attempt > 0 {
				backoff := n.backoff(attempt)
				slog.InfoContext(ctx, "retry attempt", "attempt", attempt, "max", n.maxRetries, "backoff", backoff)
				if !sleep(ctx, backoff) {
					return nil
				}
			}

			processErr := n.Handle(ctx, msg.Value)
			if processErr == nil {
				if err := source.CommitMessages(ctx, msg); err != nil {
					slog.ErrorContext(ctx, "failed to commit kafka message", "error", err)
				}
				break
			}

			slog.ErrorContext(ctx, "processing failed", "error", processErr)
			if attempt == n.maxRetries {
				messagesDropped.Inc()
				slog.ErrorContext(ctx, "dropping message after retries", "retries", n.maxRetries, "offset", msg.Offset, "error", processErr)
				if err := source.CommitMessages(ctx, msg); err != nil {
					slog.ErrorContext(ctx, "failed to commit dropped message", "error", err)
				}
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
