package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/event"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/ordertoken"
)

var (
	ErrInvalidToken      = errors.New("invalid order token")
	ErrAmountMismatch    = errors.New("amount mismatch")
	ErrReferenceMismatch = errors.New("order reference mismatch")
)

// Rejection reasons used in logs and the settlement_rejections_total metric.
const (
	ReasonInvalidSignature  = "invalid_signature"
	ReasonInvalidToken      = "invalid_token"
	ReasonMissingOrder      = "missing_order"
	ReasonAmountMismatch    = "amount_mismatch"
	ReasonReferenceMismatch = "reference_mismatch"
)

// Claim is what a provider callback asserts after its signature has been
// checked. Nothing in it is trusted until it matches the order token and
// the stored order.
type Claim struct {
	Provider booking.PaymentMethod
	Token    string
	Amount   decimal.Decimal
	Currency string
	Refs     booking.ProviderRefs
	// ExternalRef is the order id the provider echoes back, if any.
	ExternalRef string
	EventID     string
}

type Settlement struct {
	Order *booking.Order
	// Updated is true only for the call that moved the order to paid.
	Updated bool
}

type SettleOrder struct {
	txManager Transactor
	orders    booking.Repository
	outbox    OutboxWriter
	cache     OrderCache
	codec     *ordertoken.Codec
	now       func() time.Time
}

func NewSettleOrder(
	txManager Transactor,
	orders booking.Repository,
	outbox OutboxWriter,
	cache OrderCache,
	codec *ordertoken.Codec,
) *SettleOrder {
	return &SettleOrder{
		txManager: txManager,
		orders:    orders,
		outbox:    outbox,
		cache:     cache,
		codec:     codec,
		now:       time.Now,
	}
}

// Execute verifies the claim against the token and the stored order, then
// applies the single pending_payment -> paid transition. Duplicates of an
// already settled order succeed with Updated=false.
func (uc *SettleOrder) Execute(ctx context.Context, claim Claim) (*Settlement, error) {
	provider := string(claim.Provider)

	payload, err := uc.codec.Verify(claim.Token)
	if err != nil {
		return nil, uc.reject(ctx, claim, ReasonInvalidToken, ErrInvalidToken)
	}

	if claim.ExternalRef != "" && claim.ExternalRef != payload.OrderID {
		return nil, uc.reject(ctx, claim, ReasonReferenceMismatch,
			fmt.Errorf("%w: provider says %q, token says %q", ErrReferenceMismatch, claim.ExternalRef, payload.OrderID))
	}

	o, err := uc.orders.GetByID(ctx, payload.OrderID)
	if errors.Is(err, booking.ErrOrderNotFound) {
		return nil, uc.reject(ctx, claim, ReasonMissingOrder, fmt.Errorf("settle %s: %w", payload.OrderID, err))
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", payload.OrderID, err)
	}

	if o.PaymentMethod != claim.Provider {
		return nil, uc.reject(ctx, claim, ReasonReferenceMismatch,
			fmt.Errorf("%w: order %s was issued for %s", ErrReferenceMismatch, o.ID, o.PaymentMethod))
	}

	if !claim.Amount.Equal(payload.Amount) || !payload.Amount.Equal(o.ExpectedAmount) ||
		!strings.EqualFold(claim.Currency, payload.Currency) || payload.Currency != o.Currency {
		return nil, uc.reject(ctx, claim, ReasonAmountMismatch,
			fmt.Errorf("%w: order %s expects %s %s, provider reported %s %s",
				ErrAmountMismatch, o.ID, o.ExpectedAmount.StringFixed(2), o.Currency, claim.Amount.StringFixed(2), claim.Currency))
	}

	var (
		updated bool
		settled *booking.Order
	)
	err = uc.txManager.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		updated, settled, err = uc.orders.MarkPaidIfPending(txCtx, o.ID, claim.Refs)
		if err != nil || !updated {
			return err
		}

		ev, err := newBookingEvent(event.TypeOrderPaid, settled, claim.EventID, uc.now().UTC())
		if err != nil {
			return err
		}
		return uc.outbox.Create(txCtx, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("mark order %s paid: %w", o.ID, err)
	}

	if updated {
		settlements.WithLabelValues(provider, "settled").Inc()
		slog.InfoContext(ctx, "order settled", "order_id", o.ID, "provider", provider, "amount", o.ExpectedAmount.StringFixed(2))
		if uc.cache != nil {
			if err := uc.cache.Set(ctx, settled); err != nil {
				slog.WarnContext(ctx, "failed to cache settled order", "order_id", o.ID, "error", err)
			}
		}
	} else {
		settlements.WithLabelValues(provider, "duplicate").Inc()
		slog.InfoContext(ctx, "duplicate settlement ignored", "order_id", o.ID, "provider", provider, "status", settled.PaymentStatus)
	}

	return &Settlement{Order: settled, Updated: updated}, nil
}

func (uc *SettleOrder) reject(ctx context.Context, claim Claim, reason string, err error) error {
	RecordRejection(ctx, claim.Provider, reason, err)
	return err
}

// RecordRejection logs and counts a callback refused at the trust boundary.
func RecordRejection(ctx context.Context, provider booking.PaymentMethod, reason string, err error) {
	settlementRejections.WithLabelValues(string(provider), reason).Inc()
	settlements.WithLabelValues(string(provider), "rejected").Inc()

	level := slog.LevelWarn
	if reason == ReasonAmountMismatch || reason == ReasonInvalidSignature {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "settlement rejected",
		"security_event", true, "provider", string(provider), "reason", reason, "error", err)
}
