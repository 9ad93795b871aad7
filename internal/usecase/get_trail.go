package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/inbox"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/outbox"
)

// TrailDTO shows what happened to one booking: its current state, the
// events it emitted and which consumers have handled them.
type TrailDTO struct {
	Order  *OrderStatusDTO `json:"order"`
	Outbox []*outbox.Event `json:"outbox"`
	Inbox  []*inbox.Event  `json:"inbox"`
}

type GetTrail struct {
	orders booking.Repository
	outbox OutboxReader
	inbox  InboxReader
}

func NewGetTrail(orders booking.Repository, outbox OutboxReader, inbox InboxReader) *GetTrail {
	return &GetTrail{
		orders: orders,
		outbox: outbox,
		inbox:  inbox,
	}
}

func (uc *GetTrail) Execute(ctx context.Context, orderID string) (*TrailDTO, error) {
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, booking.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	outboxEvents, err := uc.outbox.ListByCorrelationID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get outbox events: %w", err)
	}

	inboxEvents, err := uc.inbox.ListByCorrelationID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get inbox events: %w", err)
	}

	return &TrailDTO{
		Order:  newOrderStatusDTO(o),
		Outbox: outboxEvents,
		Inbox:  inboxEvents,
	}, nil
}
