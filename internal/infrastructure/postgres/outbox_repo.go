package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/outbox"
)

const outboxColumns = `
	id,
	event_type,
	payload,
	status,
	COALESCE(correlation_id, ''),
	COALESCE(causation_id, ''),
	producer,
	created_at,
	updated_at`

type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) Create(ctx context.Context, e *outbox.Event) error {
	const sql = `
		INSERT INTO outbox (id, event_type, payload, status, correlation_id, causation_id, producer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`

	_, err := conn(ctx, r.pool).Exec(ctx, sql,
		e.ID, e.EventType, e.Payload, e.Status, nullIfEmpty(e.CorrelationID), nullIfEmpty(e.CausationID), nullIfEmptyDefault(e.Producer, "unknown"), e.CreatedAt)

	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	return nil
}

func (r *OutboxRepository) FetchBatch(ctx context.Context, limit int) ([]*outbox.Event, error) {
	sql := `
		WITH claimed_events AS (
			SELECT id
			FROM outbox
			WHERE status = 'new'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (SELECT id FROM claimed_events)
		RETURNING ` + outboxColumns

	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}

	return scanOutboxEvents(rows)
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, ids []string) error {
	const sql = `
		UPDATE outbox
		SET status = 'processed', updated_at = NOW()
		WHERE id = ANY($1)
	`
	_, err := r.pool.Exec(ctx, sql, ids)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, ids []string) error {
	const sql = `
		UPDATE outbox
		SET status = 'new', updated_at = NOW()
		WHERE id = ANY($1)
	`
	_, err := r.pool.Exec(ctx, sql, ids)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (r *OutboxRepository) ListByCorrelationID(ctx context.Context, correlationID string) ([]*outbox.Event, error) {
	sql := `SELECT ` + outboxColumns + `
		FROM outbox
		WHERE correlation_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, sql, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query outbox by correlation_id: %w", err)
	}

	return scanOutboxEvents(rows)
}

// CountByStatus feeds the inspection tool and the worker backlog gauge.
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count outbox by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan outbox count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ResetProcessing returns events stuck in processing (a worker died
// between claim and publish) to new.
func (r *OutboxRepository) ResetProcessing(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE outbox SET status = 'new', updated_at = NOW() WHERE status = 'processing'`)
	if err != nil {
		return 0, fmt.Errorf("reset processing outbox events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOutboxEvents(rows pgx.Rows) ([]*outbox.Event, error) {
	defer rows.Close()

	var events []*outbox.Event
	for rows.Next() {
		e := &outbox.Event{}
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.Status, &e.CorrelationID, &e.CausationID, &e.Producer, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
