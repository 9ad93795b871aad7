// Package hostedform integrates the redirect-style provider: the browser
// POSTs a signed form to the provider's payment page and the provider calls
// NotifyURL with a signed form when the payment settles.
package hostedform

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/provider"
)

const (
	FieldMerchantID    = "MerchantID"
	FieldWalletID      = "WalletID"
	FieldAmount        = "Amount"
	FieldCurrency      = "Currency"
	FieldOrderID       = "OrderID"
	FieldSuccessURL    = "SuccessURL"
	FieldCancelURL     = "CancelURL"
	FieldNotifyURL     = "NotifyURL"
	FieldKeyIndex      = "KeyIndex"
	FieldCustomData    = "CustomData"
	FieldStatus        = "Status"
	FieldTransactionID = "TransactionID"
	FieldSignature     = "Signature"
)

type Config struct {
	MerchantID    string
	WalletID      string
	KeyIndex      string
	SuccessURL    string
	CancelURL     string
	NotifyURL     string
	Environment   provider.Environment
	SandboxURL    string
	ProductionURL string
}

func (c Config) ActionURL() string {
	if c.Environment == provider.EnvProduction {
		return c.ProductionURL
	}
	return c.SandboxURL
}

type Provider struct {
	cfg    Config
	signer *Signer
}

func New(cfg Config, signer *Signer) *Provider {
	return &Provider{cfg: cfg, signer: signer}
}

func (p *Provider) Method() booking.PaymentMethod {
	return booking.MethodHostedForm
}

// Checkout builds the complete form. Signature is appended last because it
// covers every other field.
func (p *Provider) Checkout(_ context.Context, order *booking.Order, token string) (*provider.Checkout, error) {
	fields := []provider.Field{
		{Name: FieldMerchantID, Value: p.cfg.MerchantID},
		{Name: FieldWalletID, Value: p.cfg.WalletID},
		{Name: FieldAmount, Value: order.ExpectedAmount.StringFixed(2)},
		{Name: FieldCurrency, Value: order.Currency},
		{Name: FieldOrderID, Value: order.ID},
		{Name: FieldSuccessURL, Value: p.cfg.SuccessURL},
		{Name: FieldCancelURL, Value: p.cfg.CancelURL},
		{Name: FieldNotifyURL, Value: p.cfg.NotifyURL},
		{Name: FieldKeyIndex, Value: p.cfg.KeyIndex},
		{Name: FieldCustomData, Value: token},
	}

	sig, err := p.signer.Sign(Canonical(fields))
	if err != nil {
		return nil, fmt.Errorf("hostedform checkout %s: %w", order.ID, err)
	}
	fields = append(fields, provider.Field{Name: FieldSignature, Value: sig})

	return &provider.Checkout{
		Provider: booking.MethodHostedForm,
		Action:   p.cfg.ActionURL(),
		Method:   http.MethodPost,
		Fields:   fields,
	}, nil
}
