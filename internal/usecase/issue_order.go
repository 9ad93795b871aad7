package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/event"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/ordertoken"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/pricing"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/provider"
)

var ErrUnsupportedMethod = errors.New("unsupported payment method")

type IssueOrder struct {
	txManager  Transactor
	orders     booking.Repository
	outbox     OutboxWriter
	engine     *pricing.Engine
	codec      *ordertoken.Codec
	providers  provider.Registry
	now        func() time.Time
	newOrderID func() string
}

func NewIssueOrder(
	txManager Transactor,
	orders booking.Repository,
	outbox OutboxWriter,
	engine *pricing.Engine,
	codec *ordertoken.Codec,
	providers provider.Registry,
) *IssueOrder {
	return &IssueOrder{
		txManager:  txManager,
		orders:     orders,
		outbox:     outbox,
		engine:     engine,
		codec:      codec,
		providers:  providers,
		now:        time.Now,
		newOrderID: uuid.NewString,
	}
}

type IssueOrderParams struct {
	RouteID       string                `json:"route_id"`
	VehicleTypeID string                `json:"vehicle_type_id"`
	TripType      string                `json:"trip_type"`
	PaymentMethod booking.PaymentMethod `json:"payment_method"`
	Customer      booking.Customer      `json:"customer"`
}

type IssuedOrder struct {
	OrderID       string                `json:"order_id"`
	Quote         pricing.Quote         `json:"quote"`
	Currency      string                `json:"currency"`
	Token         string                `json:"token"`
	PaymentStatus booking.PaymentStatus `json:"payment_status"`
	Checkout      *provider.Checkout    `json:"checkout,omitempty"`
}

// Execute prices the trip, binds the price to a fresh order id with a
// signed token, persists the order and asks the provider for a checkout.
// The amount handed to the provider is always the computed total.
func (uc *IssueOrder) Execute(ctx context.Context, params IssueOrderParams) (*IssuedOrder, error) {
	if !params.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, params.PaymentMethod)
	}
	var strategy provider.Provider
	if params.PaymentMethod != booking.MethodCash {
		var ok bool
		if strategy, ok = uc.providers.Get(params.PaymentMethod); !ok {
			return nil, fmt.Errorf("%w: %q is not configured", ErrUnsupportedMethod, params.PaymentMethod)
		}
	}

	quote, err := uc.engine.Compute(params.RouteID, params.VehicleTypeID, params.TripType)
	if err != nil {
		return nil, fmt.Errorf("price order: %w", err)
	}

	now := uc.now().UTC()
	o := &booking.Order{
		ID:             uc.newOrderID(),
		RouteID:        params.RouteID,
		VehicleTypeID:  params.VehicleTypeID,
		TripType:       params.TripType,
		ExpectedAmount: quote.Total,
		Currency:       uc.engine.Currency(),
		PaymentMethod:  params.PaymentMethod,
		PaymentStatus:  booking.StatusPendingPayment,
		Customer:       params.Customer,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	token, err := uc.codec.Issue(ordertoken.Payload{
		OrderID:   o.ID,
		Amount:    o.ExpectedAmount,
		Currency:  o.Currency,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("issue order token: %w", err)
	}

	issued := &IssuedOrder{
		OrderID:  o.ID,
		Quote:    quote,
		Currency: o.Currency,
		Token:    token,
	}

	if params.PaymentMethod == booking.MethodCash {
		if err := uc.createCashBooking(ctx, o); err != nil {
			return nil, err
		}
		issued.PaymentStatus = o.PaymentStatus
		ordersIssued.WithLabelValues(string(o.PaymentMethod)).Inc()
		return issued, nil
	}

	if err := uc.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	issued.PaymentStatus = o.PaymentStatus
	ordersIssued.WithLabelValues(string(o.PaymentMethod)).Inc()

	checkout, err := strategy.Checkout(ctx, o, token)
	if err != nil {
		slog.ErrorContext(ctx, "provider checkout failed", "order_id", o.ID, "provider", o.PaymentMethod, "error", err)
		return nil, fmt.Errorf("checkout %s: %w", o.ID, err)
	}

	if !checkout.Refs.IsZero() {
		if err := uc.orders.AttachProviderRefs(ctx, o.ID, checkout.Refs); err != nil {
			return nil, fmt.Errorf("attach provider refs: %w", err)
		}
	}

	issued.Checkout = checkout
	slog.InfoContext(ctx, "order issued",
		"order_id", o.ID, "provider", o.PaymentMethod, "amount", o.ExpectedAmount.StringFixed(2), "currency", o.Currency)

	return issued, nil
}

// createCashBooking confirms the booking immediately; payment is collected
// by the driver, so no provider and no settlement callback are involved.
func (uc *IssueOrder) createCashBooking(ctx context.Context, o *booking.Order) error {
	o.PaymentStatus = booking.StatusCashConfirmed

	ev, err := newBookingEvent(event.TypeBookingConfirmed, o, "", o.CreatedAt)
	if err != nil {
		return err
	}

	err = uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.orders.Create(txCtx, o); err != nil {
			return err
		}
		return uc.outbox.Create(txCtx, ev)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	slog.InfoContext(ctx, "cash booking confirmed", "order_id", o.ID, "amount", o.ExpectedAmount.StringFixed(2))
	return nil
}
