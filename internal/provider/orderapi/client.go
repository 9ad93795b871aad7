// Package orderapi integrates the REST provider: the server creates a
// provider order, exchanges it for a client token, and later learns about
// the payment from a signed webhook.
package orderapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/provider"
)

var (
	ErrCreateOrder   = errors.New("orderapi: create order failed")
	ErrTokenExchange = errors.New("orderapi: token exchange failed")
	ErrFetchOrder    = errors.New("orderapi: fetch order failed")
)

const (
	StateCompleted = "COMPLETED"

	defaultTimeout = 10 * time.Second
)

type Config struct {
	SecretKey     string
	APIVersion    string
	Environment   provider.Environment
	SandboxURL    string
	ProductionURL string
	Timeout       time.Duration
}

func (c Config) BaseURL() string {
	if c.Environment == provider.EnvProduction {
		return c.ProductionURL
	}
	return c.SandboxURL
}

type Customer struct {
	Email string `json:"email,omitempty"`
}

type CreateOrderRequest struct {
	Amount              int64             `json:"amount"`
	Currency            string            `json:"currency"`
	Customer            Customer          `json:"customer"`
	MerchantOrderExtRef string            `json:"merchant_order_ext_ref"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// Order is the provider's view of an order. Amount is in minor units.
type Order struct {
	ID                  string            `json:"id"`
	PublicID            string            `json:"public_id"`
	State               string            `json:"state"`
	Amount              int64             `json:"amount"`
	Currency            string            `json:"currency"`
	MerchantOrderExtRef string            `json:"merchant_order_ext_ref"`
	Metadata            map[string]string `json:"metadata"`
}

func (o *Order) OrderToken() string {
	return o.Metadata[MetadataOrderToken]
}

type tokenResponse struct {
	Token string `json:"token"`
}

type Client struct {
	resty *resty.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	rc := resty.New().
		SetTransport(otelhttp.NewTransport(http.DefaultTransport)).
		SetBaseURL(cfg.BaseURL()).
		SetTimeout(timeout).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Api-Version", cfg.APIVersion).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{resty: rc}
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	slog.InfoContext(ctx, "orderapi create order", "merchant_order_ext_ref", req.MerchantOrderExtRef)

	resp, err := c.resty.R().
		SetContext(ctx).
		SetBody(req).
		Post("/api/orders")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateOrder, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %s", ErrCreateOrder, resp.Status())
	}

	var order Order
	if err := json.Unmarshal(resp.Body(), &order); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrCreateOrder, err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: response without order id", ErrCreateOrder)
	}
	return &order, nil
}

func (c *Client) ExchangeToken(ctx context.Context, orderID string) (string, error) {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetPathParam("id", orderID).
		Post("/api/orders/{id}/token")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: status %s", ErrTokenExchange, resp.Status())
	}

	var out tokenResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrTokenExchange, err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrTokenExchange)
	}
	return out.Token, nil
}

// GetOrder reads the provider's authoritative order. Webhook bodies carry
// only identifiers, so amount and passthrough token come from here.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetPathParam("id", orderID).
		Get("/api/orders/{id}")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchOrder, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %s", ErrFetchOrder, resp.Status())
	}

	var order Order
	if err := json.Unmarshal(resp.Body(), &order); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrFetchOrder, err)
	}
	return &order, nil
}
