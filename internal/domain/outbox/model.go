package outbox

import (
	"context"
	"encoding/json"
	"time"
)

const (
	StatusNew        = "new"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
)

// Event is a row written in the same transaction as the booking status change
// it describes, and published to Kafka later by the worker.
type Event struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Status        string          `json:"status"`
	CorrelationID string          `json:"correlation_id"`
	CausationID   string          `json:"causation_id"`
	Producer      string          `json:"producer"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Repository interface {
	Create(ctx context.Context, event *Event) error
	FetchBatch(ctx context.Context, limit int) ([]*Event, error)
	MarkProcessed(ctx context.Context, ids []string) error
	MarkFailed(ctx context.Context, ids []string) error
}
