package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	domainEvent "github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/event"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/outbox"
)

var (
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_outbox_events_published_total",
		Help: "The total number of events published to Kafka",
	})
	publishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worker_outbox_publish_errors_total",
		Help: "The total number of failed publish attempts",
	})
)

const (
	defaultInterval  = 2 * time.Second
	defaultBatchSize = 10
	sendTimeout      = 5 * time.Second
)

type Publisher interface {
	SendMessage(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// OutboxPoller moves committed outbox rows to Kafka. Delivery is at least
// once: a crash between send and MarkProcessed resends the event, and
// consumers dedupe on the event id.
type OutboxPoller struct {
	outboxRepo outbox.Repository
	publisher  Publisher
	interval   time.Duration
	batchSize  int
}

func NewOutboxPoller(outboxRepo outbox.Repository, publisher Publisher) *OutboxPoller {
	return &OutboxPoller{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		interval:   defaultInterval,
		batchSize:  defaultBatchSize,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("outbox poller started", "interval", p.interval, "batch_size", p.batchSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "failed to process outbox batch", "error", err)
			}
		}
	}
}

func (p *OutboxPoller) processBatch(ctx context.Context) error {
	events, err := p.outboxRepo.FetchBatch(ctx, p.batchSize)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	var processedIDs []string
	var failedIDs []string

	for _, e := range events {
		key := []byte(e.CorrelationID)
		if len(key) == 0 {
			key = []byte(e.ID)
		}

		msg := domainEvent.Message{
			ID:            e.ID,
			Type:          e.EventType,
			CorrelationID: e.CorrelationID,
			CausationID:   e.CausationID,
			Producer:      e.Producer,
			OccurredAt:    e.CreatedAt.UTC(),
			Payload:       e.Payload,
		}

		value, err := json.Marshal(msg)
		if err != nil {
			slog.ErrorContext(ctx, "failed to marshal outbox event", "event_id", e.ID, "error", err)
			publishErrors.Inc()
			failedIDs = append(failedIDs, e.ID)
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err = p.publisher.SendMessage(sendCtx, key, value, kafka.Header{Key: "event_type", Value: []byte(e.EventType)})
		cancel()

		if err != nil {
			slog.ErrorContext(ctx, "failed to publish outbox event", "event_id", e.ID, "error", err)
			publishErrors.Inc()
			failedIDs = append(failedIDs, e.ID)
			continue
		}

		eventsPublished.Inc()
		processedIDs = append(processedIDs, e.ID)
	}

	if len(processedIDs) > 0 {
		if err := p.outboxRepo.MarkProcessed(ctx, processedIDs); err != nil {
			return err
		}
		slog.InfoContext(ctx, "outbox events published", "count", len(processedIDs))
	}

	if len(failedIDs) > 0 {
		if err := p.outboxRepo.MarkFailed(ctx, failedIDs); err != nil {
			slog.ErrorContext(ctx, "failed to mark outbox events as failed", "error", err)
		}
	}

	return nil
}
