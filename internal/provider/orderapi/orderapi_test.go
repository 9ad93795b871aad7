package orderapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/provider"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		SecretKey:   "sk_test",
		APIVersion:  "2024-09-01",
		Environment: provider.EnvSandbox,
		SandboxURL:  url,
	})
}

func testOrder() *booking.Order {
	return &booking.Order{
		ID:             "ord-1",
		ExpectedAmount: decimal.RequireFromString("117.50"),
		Currency:       "EUR",
		PaymentMethod:  booking.MethodOrderAPI,
		Customer:       booking.Customer{Email: "a@b.test"},
	}
}

func TestToMinor(t *testing.T) {
	minor, err := ToMinor(decimal.RequireFromString("117.50"))
	require.NoError(t, err)
	assert.Equal(t, int64(11750), minor)

	minor, err = ToMinor(decimal.NewFromInt(60))
	require.NoError(t, err)
	assert.Equal(t, int64(6000), minor)

	_, err = ToMinor(decimal.RequireFromString("1.005"))
	assert.Error(t, err)

	assert.True(t, FromMinor(6000).Equal(decimal.NewFromInt(60)))
}

func TestCheckout_CreatesOrderAndExchangesToken(t *testing.T) {
	var created CreateOrderRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-09-01", r.Header.Get("Api-Version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"prov-1","public_id":"pub-1","state":"PENDING"}`))
	})
	mux.HandleFunc("POST /api/orders/{id}/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "prov-1", r.PathValue("id"))
		_, _ = w.Write([]byte(`{"token":"tok-browser"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	co, err := New(newTestClient(srv.URL)).Checkout(context.Background(), testOrder(), "signed.token")
	require.NoError(t, err)

	assert.Equal(t, int64(11750), created.Amount)
	assert.Equal(t, "EUR", created.Currency)
	assert.Equal(t, "ord-1", created.MerchantOrderExtRef)
	assert.Equal(t, "a@b.test", created.Customer.Email)
	assert.Equal(t, "signed.token", created.Metadata[MetadataOrderToken])

	assert.Equal(t, booking.MethodOrderAPI, co.Provider)
	assert.Equal(t, "tok-browser", co.ClientToken)
	assert.Equal(t, "prov-1", co.Refs.OrderID)
	assert.Equal(t, "pub-1", co.Refs.PublicID)
}

func TestCheckout_DistinguishesFailures(t *testing.T) {
	t.Run("create order", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := New(newTestClient(srv.URL)).Checkout(context.Background(), testOrder(), "t")
		assert.ErrorIs(t, err, ErrCreateOrder)
		assert.NotErrorIs(t, err, ErrTokenExchange)
	})

	t.Run("token exchange", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"prov-1"}`))
		})
		mux.HandleFunc("POST /api/orders/{id}/token", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		_, err := New(newTestClient(srv.URL)).Checkout(context.Background(), testOrder(), "t")
		assert.ErrorIs(t, err, ErrTokenExchange)
		assert.NotErrorIs(t, err, ErrCreateOrder)
	})
}

func TestGetOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders/prov-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"prov-1","state":"COMPLETED","amount":6000,"currency":"EUR",
			"merchant_order_ext_ref":"ord-1","metadata":{"order_token":"tok"}}`))
	}))
	defer srv.Close()

	o, err := newTestClient(srv.URL).GetOrder(context.Background(), "prov-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), o.Amount)
	assert.Equal(t, "tok", o.OrderToken())
	assert.Equal(t, StateCompleted, o.State)
}

func TestWebhookVerifier(t *testing.T) {
	v := NewWebhookVerifier("whsec")
	body := []byte(`{"event":"ORDER_COMPLETED","order":{"id":"prov-1","merchant_order_ext_ref":"ord-1"}}`)
	sig := v.Sign(body)

	assert.NoError(t, v.Verify(sig, body))
	assert.NoError(t, v.Verify("v1=deadbeef, "+sig, body), "rotation list")

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-3] = 'X'
	assert.ErrorIs(t, v.Verify(sig, tampered), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify("", body), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify("v2="+sig[3:], body), ErrInvalidSignature)
	assert.ErrorIs(t, NewWebhookVerifier("other").Verify(sig, body), ErrInvalidSignature)
	assert.ErrorIs(t, NewWebhookVerifier("").Verify(sig, body), ErrInvalidSignature)

	ev, err := ParseEvent(body)
	require.NoError(t, err)
	assert.True(t, ev.Completed())
	assert.Equal(t, "ord-1", ev.Order.MerchantOrderExtRef)

	_, err = ParseEvent([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}
