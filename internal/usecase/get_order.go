package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
)

type OrderStatusDTO struct {
	OrderID        string                `json:"order_id"`
	PaymentStatus  booking.PaymentStatus `json:"payment_status"`
	PaymentMethod  booking.PaymentMethod `json:"payment_method"`
	ExpectedAmount string                `json:"expected_amount"`
	Currency       string                `json:"currency"`
	ProviderRefs   *booking.ProviderRefs `json:"provider_refs,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	PaidAt         *time.Time            `json:"paid_at,omitempty"`
}

func newOrderStatusDTO(o *booking.Order) *OrderStatusDTO {
	dto := &OrderStatusDTO{
		OrderID:        o.ID,
		PaymentStatus:  o.PaymentStatus,
		PaymentMethod:  o.PaymentMethod,
		ExpectedAmount: o.ExpectedAmount.StringFixed(2),
		Currency:       o.Currency,
		CreatedAt:      o.CreatedAt,
		PaidAt:         o.PaidAt,
	}
	if !o.ProviderRefs.IsZero() {
		refs := o.ProviderRefs
		dto.ProviderRefs = &refs
	}
	return dto
}

type GetOrder struct {
	cache  OrderCache
	orders booking.Repository
}

func NewGetOrder(cache OrderCache, orders booking.Repository) *GetOrder {
	return &GetOrder{
		cache:  cache,
		orders: orders,
	}
}

// Execute serves from the cache when it can. Cache failures only cost a
// store read. Only terminal orders are cached: they never change again, so
// a read racing a settlement cannot pin a stale pending status.
func (uc *GetOrder) Execute(ctx context.Context, orderID string) (*OrderStatusDTO, error) {
	if uc.cache != nil {
		if o, err := uc.cache.Get(ctx, orderID); err == nil {
			return newOrderStatusDTO(o), nil
		}
	}

	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, booking.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if uc.cache != nil && o.PaymentStatus.IsTerminal() {
		if err := uc.cache.Set(ctx, o); err != nil {
			slog.WarnContext(ctx, "failed to cache order", "order_id", orderID, "error", err)
		}
	}

	return newOrderStatusDTO(o), nil
}
