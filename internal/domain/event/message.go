package event

import (
	"encoding/json"
	"time"
)

const (
	TypeOrderPaid        = "OrderPaid"
	TypeBookingConfirmed = "BookingConfirmed"
)

// Message is the envelope published to Kafka.
// Payload is kept as raw JSON produced by the originating service.
type Message struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlation_id"`
	CausationID   string          `json:"causation_id,omitempty"`
	Producer      string          `json:"producer"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// BookingPayload is carried by OrderPaid and BookingConfirmed events.
// Amount is the fixed two-decimal string of the bound amount.
type BookingPayload struct {
	OrderID         string `json:"order_id"`
	RouteID         string `json:"route_id"`
	VehicleTypeID   string `json:"vehicle_type_id"`
	TripType        string `json:"trip_type"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	PaymentMethod   string `json:"payment_method"`
	PaymentStatus   string `json:"payment_status"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	ProviderOrderID string `json:"provider_order_id,omitempty"`
}
