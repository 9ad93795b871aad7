package booking

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderExists   = errors.New("order already exists")
)

type PaymentStatus string

const (
	StatusPendingPayment PaymentStatus = "pending_payment"
	StatusPaid           PaymentStatus = "paid"
	StatusFailed         PaymentStatus = "failed"
	StatusCashConfirmed  PaymentStatus = "cash_confirmed"
)

// IsTerminal reports whether no further status write is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusCashConfirmed
}

func (s PaymentStatus) String() string {
	return string(s)
}

// CanTransitionTo encodes the only moves this service performs:
// pending_payment -> paid | failed. Everything else is a dead end.
func CanTransitionTo(from, to PaymentStatus) bool {
	if from != StatusPendingPayment {
		return false
	}
	return to == StatusPaid || to == StatusFailed
}

type PaymentMethod string

const (
	MethodHostedForm PaymentMethod = "hostedform"
	MethodOrderAPI   PaymentMethod = "orderapi"
	MethodCash       PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodHostedForm, MethodOrderAPI, MethodCash:
		return true
	}
	return false
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ProviderRefs are the identifiers a payment provider assigned to the order.
type ProviderRefs struct {
	OrderID       string `json:"provider_order_id,omitempty"`
	PublicID      string `json:"provider_public_id,omitempty"`
	TransactionID string `json:"provider_transaction_id,omitempty"`
}

func (r ProviderRefs) IsZero() bool {
	return r.OrderID == "" && r.PublicID == "" && r.TransactionID == ""
}

type Order struct {
	ID             string          `json:"id"`
	RouteID        string          `json:"route_id"`
	VehicleTypeID  string          `json:"vehicle_type_id"`
	TripType       string          `json:"trip_type"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	Currency       string          `json:"currency"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	ProviderRefs   ProviderRefs    `json:"provider_refs"`
	Customer       Customer        `json:"customer"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

// Repository is the reconciliation store.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// AttachProviderRefs records provider identifiers while the order is
	// still pending_payment; on any other status it is a no-op.
	AttachProviderRefs(ctx context.Context, id string, refs ProviderRefs) error
	// MarkPaidIfPending moves pending_payment to paid in one conditional
	// write. updated reports whether this call made the transition; a
	// missing order is ErrOrderNotFound, never updated=false.
	MarkPaidIfPending(ctx context.Context, id string, refs ProviderRefs) (updated bool, o *Order, err error)
}
