package orderapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	SignatureHeader = "Webhook-Signature"

	EventOrderCompleted = "ORDER_COMPLETED"

	signatureVersion = "v1="
)

var (
	ErrInvalidSignature = errors.New("orderapi: invalid webhook signature")
	ErrMalformedEvent   = errors.New("orderapi: malformed webhook event")
)

type EventOrder struct {
	ID                  string `json:"id"`
	PublicID            string `json:"public_id"`
	MerchantOrderExtRef string `json:"merchant_order_ext_ref"`
}

type Event struct {
	Type  string     `json:"event"`
	Order EventOrder `json:"order"`
}

func (e *Event) Completed() bool {
	return e.Type == EventOrderCompleted
}

type WebhookVerifier struct {
	secret []byte
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

// Sign returns the header value the provider sends for body.
func (v *WebhookVerifier) Sign(body []byte) string {
	return signatureVersion + hex.EncodeToString(v.mac(body))
}

// Verify checks header against the raw request body. The header may list
// several comma separated signatures while the provider rotates secrets;
// one match is enough.
func (v *WebhookVerifier) Verify(header string, body []byte) error {
	if len(v.secret) == 0 || header == "" {
		return ErrInvalidSignature
	}

	expected := v.mac(body)
	for _, part := range strings.Split(header, ",") {
		hexSig, ok := strings.CutPrefix(strings.TrimSpace(part), signatureVersion)
		if !ok {
			continue
		}
		sig, err := hex.DecodeString(hexSig)
		if err != nil {
			continue
		}
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

func (v *WebhookVerifier) mac(body []byte) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write(body)
	return m.Sum(nil)
}

// ParseEvent decodes a body that has already passed Verify.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}
	return &ev, nil
}
