package usecase

import (
	"context"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/inbox"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/outbox"
)

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type OutboxWriter interface {
	Create(ctx context.Context, event *outbox.Event) error
}

type OutboxReader interface {
	ListByCorrelationID(ctx context.Context, correlationID string) ([]*outbox.Event, error)
}

type InboxReader interface {
	ListByCorrelationID(ctx context.Context, correlationID string) ([]*inbox.Event, error)
}

// OrderCache is optional; a nil cache means every read goes to the store.
// It only ever holds orders in a terminal status.
type OrderCache interface {
	Get(ctx context.Context, id string) (*booking.Order, error)
	Set(ctx context.Context, o *booking.Order) error
}
