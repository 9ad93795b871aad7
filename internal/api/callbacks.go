package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/provider/orderapi"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/usecase"
)

const maxCallbackBody = 64 << 10

// Plain-text answers the hosted form provider understands.
const (
	notifyOK               = "OK"
	notifyInvalidSignature = "INVALID SIGNATURE"
	notifyInvalidOrder     = "INVALID ORDER"
	notifyMissingOrder     = "MISSING ORDER"
	notifyAmountMismatch   = "AMOUNT MISMATCH"
	notifyError            = "ERROR"
)

// HostedFormNotify is the server-to-server callback of the hosted form
// provider. Only the signed form body is read; query parameters are ignored.
func (h *Handlers) HostedFormNotify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBody)
	if err := r.ParseForm(); err != nil {
		usecase.RecordRejection(ctx, booking.MethodHostedForm, usecase.ReasonInvalidSignature, err)
		respondText(w, http.StatusBadRequest, notifyInvalidSignature)
		return
	}

	n, err := h.notifyVerifier.Verify(r.PostForm)
	if err != nil {
		usecase.RecordRejection(ctx, booking.MethodHostedForm, usecase.ReasonInvalidSignature, err)
		respondText(w, http.StatusBadRequest, notifyInvalidSignature)
		return
	}

	if !n.Approved() {
		slog.InfoContext(ctx, "hosted form payment not approved", "order_id", n.OrderID, "status", n.Status)
		respondText(w, http.StatusOK, notifyOK)
		return
	}

	amount, err := decimal.NewFromString(n.Amount)
	if err != nil {
		usecase.RecordRejection(ctx, booking.MethodHostedForm, usecase.ReasonAmountMismatch, err)
		respondText(w, http.StatusBadRequest, notifyAmountMismatch)
		return
	}

	_, err = h.settleOrderUC.Execute(ctx, usecase.Claim{
		Provider:    booking.MethodHostedForm,
		Token:       n.Token,
		Amount:      amount,
		Currency:    n.Currency,
		Refs:        n.Refs(),
		ExternalRef: n.OrderID,
		EventID:     n.TransactionID,
	})
	switch {
	case err == nil:
		respondText(w, http.StatusOK, notifyOK)
	case errors.Is(err, usecase.ErrInvalidToken), errors.Is(err, usecase.ErrReferenceMismatch):
		respondText(w, http.StatusBadRequest, notifyInvalidOrder)
	case errors.Is(err, booking.ErrOrderNotFound):
		respondText(w, http.StatusOK, notifyMissingOrder)
	case errors.Is(err, usecase.ErrAmountMismatch):
		respondText(w, http.StatusBadRequest, notifyAmountMismatch)
	default:
		slog.ErrorContext(ctx, "hosted form settlement failed", "order_id", n.OrderID, "error", err)
		respondText(w, http.StatusInternalServerError, notifyError)
	}
}

type webhookAck struct {
	Received bool   `json:"received"`
	Status   string `json:"status,omitempty"`
	Updated  bool   `json:"updated,omitempty"`
}

// OrderAPIWebhook verifies the HMAC over the raw bytes before decoding
// anything. The webhook only carries ids; amount, currency and the order
// token are read back from the provider.
func (h *Handlers) OrderAPIWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, webhookAck{Status: "unreadable_body"})
		return
	}

	if err := h.webhookVerifier.Verify(r.Header.Get(orderapi.SignatureHeader), body); err != nil {
		usecase.RecordRejection(ctx, booking.MethodOrderAPI, usecase.ReasonInvalidSignature, err)
		respondJSON(w, http.StatusUnauthorized, webhookAck{Status: usecase.ReasonInvalidSignature})
		return
	}

	ev, err := orderapi.ParseEvent(body)
	if err != nil {
		slog.WarnContext(ctx, "malformed webhook", "error", err)
		respondJSON(w, http.StatusBadRequest, webhookAck{Status: "malformed_event"})
		return
	}

	if !ev.Completed() {
		slog.InfoContext(ctx, "webhook event ignored", "event", ev.Type, "provider_order_id", ev.Order.ID)
		respondJSON(w, http.StatusOK, webhookAck{Received: true, Status: "ignored"})
		return
	}
	if ev.Order.ID == "" {
		respondJSON(w, http.StatusBadRequest, webhookAck{Status: "malformed_event"})
		return
	}

	providerOrder, err := h.providerOrders.GetOrder(ctx, ev.Order.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read provider order", "provider_order_id", ev.Order.ID, "error", err)
		respondJSON(w, http.StatusInternalServerError, webhookAck{Status: "provider_unavailable"})
		return
	}

	externalRef := ev.Order.MerchantOrderExtRef
	if externalRef == "" {
		externalRef = providerOrder.MerchantOrderExtRef
	}
	publicID := providerOrder.PublicID
	if publicID == "" {
		publicID = ev.Order.PublicID
	}

	res, err := h.settleOrderUC.Execute(ctx, usecase.Claim{
		Provider: booking.MethodOrderAPI,
		Token:    providerOrder.OrderToken(),
		Amount:   orderapi.FromMinor(providerOrder.Amount),
		Currency: providerOrder.Currency,
		Refs: booking.ProviderRefs{
			OrderID:  providerOrder.ID,
			PublicID: publicID,
		},
		ExternalRef: externalRef,
		EventID:     ev.Order.ID,
	})
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, webhookAck{Received: true, Status: string(res.Order.PaymentStatus), Updated: res.Updated})
	case errors.Is(err, usecase.ErrInvalidToken):
		respondJSON(w, http.StatusOK, webhookAck{Received: true, Status: usecase.ReasonInvalidToken})
	case errors.Is(err, usecase.ErrReferenceMismatch):
		respondJSON(w, http.StatusOK, webhookAck{Received: true, Status: usecase.ReasonReferenceMismatch})
	case errors.Is(err, usecase.ErrAmountMismatch):
		respondJSON(w, http.StatusOK, webhookAck{Received: true, Status: usecase.ReasonAmountMismatch})
	case errors.Is(err, booking.ErrOrderNotFound):
		respondJSON(w, http.StatusOK, webhookAck{Received: true, Status: usecase.ReasonMissingOrder})
	default:
		slog.ErrorContext(ctx, "webhook settlement failed", "provider_order_id", ev.Order.ID, "error", err)
		respondJSON(w, http.StatusInternalServerError, webhookAck{Status: "error"})
	}
}

func respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
