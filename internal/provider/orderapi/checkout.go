package orderapi

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/provider"
)

// MetadataOrderToken is the metadata key the order token travels under.
const MetadataOrderToken = "order_token"

var hundred = decimal.NewFromInt(100)

// ToMinor converts a two-decimal amount to minor units. Amounts with
// sub-cent precision are rejected instead of rounded.
func ToMinor(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than two decimals", amount)
	}
	return minor.IntPart(), nil
}

func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

type Provider struct {
	client *Client
}

func New(client *Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Method() booking.PaymentMethod {
	return booking.MethodOrderAPI
}

func (p *Provider) Checkout(ctx context.Context, order *booking.Order, token string) (*provider.Checkout, error) {
	minor, err := ToMinor(order.ExpectedAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateOrder, err)
	}

	created, err := p.client.CreateOrder(ctx, CreateOrderRequest{
		Amount:              minor,
		Currency:            order.Currency,
		Customer:            Customer{Email: order.Customer.Email},
		MerchantOrderExtRef: order.ID,
		Metadata:            map[string]string{MetadataOrderToken: token},
	})
	if err != nil {
		return nil, err
	}

	clientToken, err := p.client.ExchangeToken(ctx, created.ID)
	if err != nil {
		return nil, err
	}

	// The client token is a short-lived browser credential, not an order
	// identifier; only the provider's public id is persisted.
	return &provider.Checkout{
		Provider:    booking.MethodOrderAPI,
		ClientToken: clientToken,
		Refs: booking.ProviderRefs{
			OrderID:  created.ID,
			PublicID: created.PublicID,
		},
	}, nil
}
