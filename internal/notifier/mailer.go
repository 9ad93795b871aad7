package notifier

import (
	"context"
	"log/slog"

	domainEvent "github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/event"
)

type Confirmation struct {
	Kind          string
	OrderID       string
	CustomerName  string
	CustomerEmail string
	RouteID       string
	VehicleTypeID string
	TripType      string
	Amount        string
	Currency      string
	PaymentMethod string
}

func confirmationFrom(kind string, p domainEvent.BookingPayload) Confirmation {
	return Confirmation{
		Kind:          kind,
		OrderID:       p.OrderID,
		CustomerName:  p.CustomerName,
		CustomerEmail: p.CustomerEmail,
		RouteID:       p.RouteID,
		VehicleTypeID: p.VehicleTypeID,
		TripType:      p.TripType,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaymentMethod: p.PaymentMethod,
	}
}

// Mailer delivers the confirmation to the customer. Delivery itself lives
// outside this service.
type Mailer interface {
	SendConfirmation(ctx context.Context, c Confirmation) error
}

// LogMailer only logs; it is the default until a delivery backend is set up.
type LogMailer struct{}

func (LogMailer) SendConfirmation(ctx context.Context, c Confirmation) error {
	slog.InfoContext(ctx, "booking confirmation",
		"kind", c.Kind,
		"order_id", c.OrderID,
		"email", c.CustomerEmail,
		"amount", c.Amount,
		"currency", c.Currency,
		"payment_method", c.PaymentMethod,
	)
	return nil
}
