// Package provider defines the checkout strategy each payment integration
// implements. Pricing and token issuance happen once, before any strategy runs.
package provider

import (
	"context"
	"strings"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
)

type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

func ParseEnvironment(s string) Environment {
	if strings.EqualFold(strings.TrimSpace(s), string(EnvProduction)) {
		return EnvProduction
	}
	return EnvSandbox
}

// Field is one name/value pair of a form POST. Order is significant for the
// rendered form only; provider signatures are computed over sorted names.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Checkout is what the browser needs to continue with the provider.
type Checkout struct {
	Provider booking.PaymentMethod `json:"provider"`

	// hosted form redirect
	Action string  `json:"action,omitempty"`
	Method string  `json:"method,omitempty"`
	Fields []Field `json:"fields,omitempty"`

	// REST order + client token
	ClientToken string `json:"client_token,omitempty"`

	Refs booking.ProviderRefs `json:"-"`
}

type Provider interface {
	Method() booking.PaymentMethod
	Checkout(ctx context.Context, order *booking.Order, token string) (*Checkout, error)
}

// Registry resolves the strategy for an order's payment method.
type Registry map[booking.PaymentMethod]Provider

func NewRegistry(providers ...Provider) Registry {
	r := make(Registry, len(providers))
	for _, p := range providers {
		if p != nil {
			r[p.Method()] = p
		}
	}
	return r
}

func (r Registry) Get(m booking.PaymentMethod) (Provider, bool) {
	p, ok := r[m]
	return p, ok
}
