package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/pricing"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/provider/hostedform"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/provider/orderapi"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/usecase"
)

// OrderFetcher reads an order back from the REST provider.
type OrderFetcher interface {
	GetOrder(ctx context.Context, orderID string) (*orderapi.Order, error)
}

type Handlers struct {
	issueOrderUC  *usecase.IssueOrder
	getOrderUC    *usecase.GetOrder
	getTrailUC    *usecase.GetTrail
	settleOrderUC *usecase.SettleOrder

	notifyVerifier  *hostedform.Verifier
	webhookVerifier *orderapi.WebhookVerifier
	providerOrders  OrderFetcher
}

func NewHandlers(
	issueOrderUC *usecase.IssueOrder,
	getOrderUC *usecase.GetOrder,
	getTrailUC *usecase.GetTrail,
	settleOrderUC *usecase.SettleOrder,
) *Handlers {
	return &Handlers{
		issueOrderUC:  issueOrderUC,
		getOrderUC:    getOrderUC,
		getTrailUC:    getTrailUC,
		settleOrderUC: settleOrderUC,
	}
}

// WithHostedForm enables POST /payments/hostedform/notify.
func (h *Handlers) WithHostedForm(verifier *hostedform.Verifier) *Handlers {
	h.notifyVerifier = verifier
	return h
}

// WithOrderAPI enables POST /webhooks/orderapi.
func (h *Handlers) WithOrderAPI(verifier *orderapi.WebhookVerifier, orders OrderFetcher) *Handlers {
	h.webhookVerifier = verifier
	h.providerOrders = orders
	return h
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type createOrderRequest struct {
	RouteID       string                `json:"route_id"`
	VehicleTypeID string                `json:"vehicle_type_id"`
	TripType      string                `json:"trip_type"`
	PaymentMethod booking.PaymentMethod `json:"payment_method"`
	Customer      booking.Customer      `json:"customer"`
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.RouteID == "" || req.VehicleTypeID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "route_id and vehicle_type_id are required")
		return
	}

	issued, err := h.issueOrderUC.Execute(r.Context(), usecase.IssueOrderParams{
		RouteID:       req.RouteID,
		VehicleTypeID: req.VehicleTypeID,
		TripType:      req.TripType,
		PaymentMethod: req.PaymentMethod,
		Customer:      req.Customer,
	})
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, issued)
	case errors.Is(err, pricing.ErrUnknownRoute):
		respondError(w, http.StatusBadRequest, "unknown_route", "unknown route")
	case errors.Is(err, pricing.ErrUnknownVehicleForRoute):
		respondError(w, http.StatusBadRequest, "unknown_vehicle", "vehicle is not offered on this route")
	case errors.Is(err, pricing.ErrInvalidTripType):
		respondError(w, http.StatusBadRequest, "invalid_trip_type", "trip_type must be one-way or return")
	case errors.Is(err, usecase.ErrUnsupportedMethod):
		respondError(w, http.StatusBadRequest, "unsupported_payment_method", "payment method is not available")
	case errors.Is(err, orderapi.ErrCreateOrder), errors.Is(err, orderapi.ErrTokenExchange):
		slog.ErrorContext(r.Context(), "provider checkout failed", "error", err)
		respondError(w, http.StatusBadGateway, "provider_unavailable", "payment provider is unavailable")
	default:
		slog.ErrorContext(r.Context(), "failed to issue order", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing order id")
		return
	}

	order, err := h.getOrderUC.Execute(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}

	noCache(w)
	respondJSON(w, http.StatusOK, order)
}

func (h *Handlers) GetTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing order id")
		return
	}

	trail, err := h.getTrailUC.Execute(r.Context(), id)
	if err != nil {
		h.respondLookupError(w, r, err)
		return
	}

	noCache(w)
	respondJSON(w, http.StatusOK, trail)
}

func (h *Handlers) respondLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, booking.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	slog.ErrorContext(r.Context(), "failed to load order", "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
