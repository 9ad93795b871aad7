package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
)

const orderColumns = `
	id, route_id, vehicle_type_id, trip_type,
	expected_amount::text, currency, payment_method, payment_status,
	COALESCE(provider_order_id, ''),
	COALESCE(provider_public_id, ''),
	COALESCE(provider_transaction_id, ''),
	customer_name, customer_email, customer_phone,
	created_at, updated_at, paid_at`

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Create(ctx context.Context, o *booking.Order) error {
	const sql = `
		INSERT INTO booking_orders (
			id, route_id, vehicle_type_id, trip_type,
			expected_amount, currency, payment_method, payment_status,
			provider_order_id, provider_public_id, provider_transaction_id,
			customer_name, customer_email, customer_phone,
			created_at, updated_at, paid_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := conn(ctx, r.pool).Exec(ctx, sql,
		o.ID, o.RouteID, o.VehicleTypeID, o.TripType,
		o.ExpectedAmount.StringFixed(2), o.Currency, string(o.PaymentMethod), string(o.PaymentStatus),
		nullIfEmpty(o.ProviderRefs.OrderID), nullIfEmpty(o.ProviderRefs.PublicID), nullIfEmpty(o.ProviderRefs.TransactionID),
		o.Customer.Name, o.Customer.Email, o.Customer.Phone,
		o.CreatedAt, o.UpdatedAt, o.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert booking order %s: %w", o.ID, booking.ErrOrderExists)
	}

	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*booking.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM booking_orders WHERE id = $1`

	o, err := scanOrder(conn(ctx, r.pool).QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking order by id: %w", err)
	}

	return o, nil
}

// AttachProviderRefs stores provider identifiers only while the order is
// pending. Empty refs never overwrite stored ones.
func (r *OrderRepository) AttachProviderRefs(ctx context.Context, id string, refs booking.ProviderRefs) error {
	const sql = `
		UPDATE booking_orders
		SET provider_order_id       = COALESCE($2, provider_order_id),
		    provider_public_id      = COALESCE($3, provider_public_id),
		    provider_transaction_id = COALESCE($4, provider_transaction_id),
		    updated_at              = NOW()
		WHERE id = $1 AND payment_status = 'pending_payment'
	`

	tag, err := conn(ctx, r.pool).Exec(ctx, sql, id,
		nullIfEmpty(refs.OrderID), nullIfEmpty(refs.PublicID), nullIfEmpty(refs.TransactionID))
	if err != nil {
		return fmt.Errorf("attach provider refs: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return nil
}

// MarkPaidIfPending is a single conditional UPDATE. Concurrent callers
// serialize on the row lock; the loser re-evaluates the WHERE clause after
// the winner commits and matches nothing.
func (r *OrderRepository) MarkPaidIfPending(ctx context.Context, id string, refs booking.ProviderRefs) (bool, *booking.Order, error) {
	sql := `
		UPDATE booking_orders
		SET payment_status          = 'paid',
		    provider_order_id       = COALESCE($2, provider_order_id),
		    provider_public_id      = COALESCE($3, provider_public_id),
		    provider_transaction_id = COALESCE($4, provider_transaction_id),
		    paid_at                 = NOW(),
		    updated_at              = NOW()
		WHERE id = $1 AND payment_status = 'pending_payment'
		RETURNING ` + orderColumns

	o, err := scanOrder(conn(ctx, r.pool).QueryRow(ctx, sql, id,
		nullIfEmpty(refs.OrderID), nullIfEmpty(refs.PublicID), nullIfEmpty(refs.TransactionID)))
	if err == nil {
		return true, o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, nil, fmt.Errorf("mark paid if pending: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return false, nil, err
	}
	return false, current, nil
}

// ListRecent is used by the inspection tool.
func (r *OrderRepository) ListRecent(ctx context.Context, limit int) ([]*booking.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM booking_orders ORDER BY created_at DESC LIMIT $1`

	rows, err := conn(ctx, r.pool).Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("query booking orders: %w", err)
	}
	defer rows.Close()

	var orders []*booking.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking order: %w", err)
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (*booking.Order, error) {
	var (
		o              booking.Order
		amount         string
		method, status string
	)
	err := row.Scan(
		&o.ID, &o.RouteID, &o.VehicleTypeID, &o.TripType,
		&amount, &o.Currency, &method, &status,
		&o.ProviderRefs.OrderID, &o.ProviderRefs.PublicID, &o.ProviderRefs.TransactionID,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.CreatedAt, &o.UpdatedAt, &o.PaidAt,
	)
	if err != nil {
		return nil, err
	}

	o.ExpectedAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse expected amount %q: %w", amount, err)
	}
	o.PaymentMethod = booking.PaymentMethod(method)
	o.PaymentStatus = booking.PaymentStatus(status)

	return &o, nil
}
