// Package ordertoken binds an order id, amount, currency and creation time
// into an opaque string that can travel through the browser and a payment
// provider and be trusted again when it comes back.
package ordertoken

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalid is the only error Verify returns. Malformed, expired and
// wrongly signed tokens are deliberately indistinguishable.
var ErrInvalid = errors.New("invalid order token")

var ErrNoSecret = errors.New("order token secret is not configured")

// ErrSubCentAmount is returned by Issue for amounts that cannot be signed
// in two-decimal form without changing their value.
var ErrSubCentAmount = errors.New("order token amount has more than two decimals")

var encoding = base64.RawURLEncoding.Strict()

type Payload struct {
	OrderID   string
	Amount    decimal.Decimal
	Currency  string
	CreatedAt time.Time
}

// wirePayload fixes the field order of the signed bytes.
type wirePayload struct {
	OrderID   string `json:"oid"`
	Amount    string `json:"amt"`
	Currency  string `json:"cur"`
	CreatedAt string `json:"iat"`
}

type Codec struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

type Option func(*Codec)

// WithMaxAge makes tokens older than d invalid. Zero disables expiry.
func WithMaxAge(d time.Duration) Option {
	return func(c *Codec) { c.maxAge = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(secret []byte, opts ...Option) *Codec {
	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Issue(p Payload) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrNoSecret
	}
	if !p.Amount.Equal(p.Amount.Round(2)) {
		return "", ErrSubCentAmount
	}

	body, err := json.Marshal(wirePayload{
		OrderID:   p.OrderID,
		Amount:    p.Amount.StringFixed(2),
		Currency:  p.Currency,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}

	return encoding.EncodeToString(body) + "." + encoding.EncodeToString(c.sign(body)), nil
}

func (c *Codec) Verify(token string) (Payload, error) {
	if len(c.secret) == 0 {
		return Payload{}, ErrInvalid
	}

	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Payload{}, ErrInvalid
	}
	body, err := encoding.DecodeString(parts[0])
	if err != nil {
		return Payload{}, ErrInvalid
	}
	tag, err := encoding.DecodeString(parts[1])
	if err != nil {
		return Payload{}, ErrInvalid
	}
	if !hmac.Equal(tag, c.sign(body)) {
		return Payload{}, ErrInvalid
	}

	var w wirePayload
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return Payload{}, ErrInvalid
	}
	amount, err := decimal.NewFromString(w.Amount)
	if err != nil {
		return Payload{}, ErrInvalid
	}
	createdAt, err := time.Parse(time.RFC3339Nano, w.CreatedAt)
	if err != nil {
		return Payload{}, ErrInvalid
	}
	if c.maxAge > 0 && c.now().Sub(createdAt) > c.maxAge {
		return Payload{}, ErrInvalid
	}

	return Payload{
		OrderID:   w.OrderID,
		Amount:    amount,
		Currency:  w.Currency,
		CreatedAt: createdAt,
	}, nil
}

func (c *Codec) sign(body []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(body)
	return mac.Sum(nil)
}
