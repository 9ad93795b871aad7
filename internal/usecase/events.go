package usecase

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/event"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/outbox"
)

const producerName = "booking-api"

func newBookingEvent(eventType string, o *booking.Order, causationID string, now time.Time) (*outbox.Event, error) {
	payload, err := json.Marshal(event.BookingPayload{
		OrderID:         o.ID,
		RouteID:         o.RouteID,
		VehicleTypeID:   o.VehicleTypeID,
		TripType:        o.TripType,
		Amount:          o.ExpectedAmount.StringFixed(2),
		Currency:        o.Currency,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		CustomerName:    o.Customer.Name,
		CustomerEmail:   o.Customer.Email,
		CustomerPhone:   o.Customer.Phone,
		ProviderOrderID: o.ProviderRefs.OrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return &outbox.Event{
		ID:            uuid.New().String(),
		EventType:     eventType,
		Payload:       payload,
		Status:        outbox.StatusNew,
		CorrelationID: o.ID,
		CausationID:   causationID,
		Producer:      producerName,
		CreatedAt:     now,
	}, nil
}
