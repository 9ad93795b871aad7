package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/outbox"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := Config{Host: host, Port: port.Port(), User: "testuser", Password: "testpass", DBName: "testdb"}
	require.NoError(t, Migrate(cfg))
	require.NoError(t, Migrate(cfg), "migrations are idempotent")

	pool, err := NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

func newTestOrder() *booking.Order {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &booking.Order{
		ID:             uuid.NewString(),
		RouteID:        "larnaca_to_nicosia",
		VehicleTypeID:  "sedan",
		TripType:       "one-way",
		ExpectedAmount: decimal.NewFromInt(60),
		Currency:       "EUR",
		PaymentMethod:  booking.MethodHostedForm,
		PaymentStatus:  booking.StatusPendingPayment,
		Customer:       booking.Customer{Name: "Ann", Email: "ann@example.test"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestOrderRepository(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewOrderRepository(pool)
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		o := newTestOrder()
		o.ExpectedAmount = decimal.RequireFromString("117.50")
		require.NoError(t, repo.Create(ctx, o))

		got, err := repo.GetByID(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, o.ExpectedAmount.Equal(got.ExpectedAmount))
		assert.Equal(t, booking.StatusPendingPayment, got.PaymentStatus)
		assert.Equal(t, booking.MethodHostedForm, got.PaymentMethod)
		assert.Equal(t, "ann@example.test", got.Customer.Email)
		assert.Nil(t, got.PaidAt)

		assert.ErrorIs(t, repo.Create(ctx, o), booking.ErrOrderExists)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, booking.ErrOrderNotFound)

		_, _, err = repo.MarkPaidIfPending(ctx, "missing", booking.ProviderRefs{})
		assert.ErrorIs(t, err, booking.ErrOrderNotFound)

		assert.ErrorIs(t, repo.AttachProviderRefs(ctx, "missing", booking.ProviderRefs{OrderID: "p"}), booking.ErrOrderNotFound)
	})

	t.Run("mark paid once", func(t *testing.T) {
		o := newTestOrder()
		require.NoError(t, repo.Create(ctx, o))
		require.NoError(t, repo.AttachProviderRefs(ctx, o.ID, booking.ProviderRefs{OrderID: "prov-1"}))

		updated, got, err := repo.MarkPaidIfPending(ctx, o.ID, booking.ProviderRefs{TransactionID: "tx-1"})
		require.NoError(t, err)
		assert.True(t, updated)
		assert.Equal(t, booking.StatusPaid, got.PaymentStatus)
		assert.Equal(t, "prov-1", got.ProviderRefs.OrderID)
		assert.Equal(t, "tx-1", got.ProviderRefs.TransactionID)
		require.NotNil(t, got.PaidAt)

		updated, got, err = repo.MarkPaidIfPending(ctx, o.ID, booking.ProviderRefs{TransactionID: "tx-2"})
		require.NoError(t, err)
		assert.False(t, updated)
		assert.Equal(t, "tx-1", got.ProviderRefs.TransactionID)

		// refs are frozen once paid
		require.NoError(t, repo.AttachProviderRefs(ctx, o.ID, booking.ProviderRefs{OrderID: "other"}))
		got, err = repo.GetByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, "prov-1", got.ProviderRefs.OrderID)
	})

	t.Run("cash confirmed is never marked paid", func(t *testing.T) {
		o := newTestOrder()
		o.PaymentMethod = booking.MethodCash
		o.PaymentStatus = booking.StatusCashConfirmed
		require.NoError(t, repo.Create(ctx, o))

		updated, got, err := repo.MarkPaidIfPending(ctx, o.ID, booking.ProviderRefs{})
		require.NoError(t, err)
		assert.False(t, updated)
		assert.Equal(t, booking.StatusCashConfirmed, got.PaymentStatus)
	})

	t.Run("concurrent duplicates transition once", func(t *testing.T) {
		o := newTestOrder()
		require.NoError(t, repo.Create(ctx, o))

		var winners atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				updated, _, err := repo.MarkPaidIfPending(ctx, o.ID, booking.ProviderRefs{})
				assert.NoError(t, err)
				if updated {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), winners.Load())
	})
}

func TestTxManager_OutboxJoinsTransaction(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	tm := NewTxManager(pool)
	orders := NewOrderRepository(pool)
	events := NewOutboxRepository(pool)

	o := newTestOrder()
	require.NoError(t, orders.Create(ctx, o))

	newEvent := func() *outbox.Event {
		return &outbox.Event{
			ID:            uuid.NewString(),
			EventType:     "OrderPaid",
			Payload:       []byte(`{"order_id":"` + o.ID + `"}`),
			Status:        outbox.StatusNew,
			CorrelationID: o.ID,
			Producer:      "test",
			CreatedAt:     time.Now(),
		}
	}

	boom := errors.New("boom")
	err := tm.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, _, err := orders.MarkPaidIfPending(ctx, o.ID, booking.ProviderRefs{}); err != nil {
			return err
		}
		if err := events.Create(ctx, newEvent()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPendingPayment, got.PaymentStatus, "rolled back")
	list, err := events.ListByCorrelationID(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, tm.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, _, err := orders.MarkPaidIfPending(ctx, o.ID, booking.ProviderRefs{}); err != nil {
			return err
		}
		return events.Create(ctx, newEvent())
	}))

	list, err = events.ListByCorrelationID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	batch, err := events.FetchBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, outbox.StatusProcessing, batch[0].Status)
	assert.JSONEq(t, `{"order_id":"`+o.ID+`"}`, string(batch[0].Payload))

	require.NoError(t, events.MarkProcessed(ctx, []string{batch[0].ID}))
	counts, err := events.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[outbox.StatusProcessed])
}

func TestInboxRepository_SaveIfNotExists(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewInboxRepository(pool)

	first, err := repo.SaveIfNotExists(ctx, "notifier", "evt-1", "OrderPaid", "ord-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := repo.SaveIfNotExists(ctx, "notifier", "evt-1", "OrderPaid", "ord-1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := repo.SaveIfNotExists(ctx, "audit", "evt-1", "OrderPaid", "ord-1")
	require.NoError(t, err)
	assert.True(t, other, "dedup is per consumer")

	list, err := repo.ListByCorrelationID(ctx, "ord-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestInspectionQueries(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	orders := NewOrderRepository(pool)
	events := NewOutboxRepository(pool)

	older := newTestOrder()
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := newTestOrder()
	require.NoError(t, orders.Create(ctx, older))
	require.NoError(t, orders.Create(ctx, newer))

	recent, err := orders.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, newer.ID, recent[0].ID)

	require.NoError(t, events.Create(ctx, &outbox.Event{
		ID:            uuid.NewString(),
		EventType:     "OrderPaid",
		Payload:       []byte(`{}`),
		Status:        outbox.StatusNew,
		CorrelationID: newer.ID,
		Producer:      "test",
		CreatedAt:     time.Now(),
	}))
	_, err = events.FetchBatch(ctx, 10)
	require.NoError(t, err)

	reset, err := events.ResetProcessing(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reset)

	counts, err := events.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[outbox.StatusNew])
	assert.Zero(t, counts[outbox.StatusProcessing])
}
