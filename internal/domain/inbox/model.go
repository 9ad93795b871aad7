package inbox

import (
	"context"
	"time"
)

// Event records that a consumer has already handled a published event.
// (consumer, event_id) is unique, so redelivered Kafka messages are skipped.
type Event struct {
	Consumer      string    `json:"consumer"`
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	CorrelationID string    `json:"correlation_id"`
	ProcessedAt   time.Time `json:"processed_at"`
}

type Repository interface {
	// SaveIfNotExists returns true only for the first call with a given (consumer, eventID).
	SaveIfNotExists(ctx context.Context, consumer, eventID, eventType, correlationID string) (bool, error)
	ListByCorrelationID(ctx context.Context, correlationID string) ([]*Event, error)
}
