package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainEvent "github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/event"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/inbox"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/infrastructure/memory"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Confirmation
}

func (m *recordingMailer) SendConfirmation(_ context.Context, c Confirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func envelope(t *testing.T, id, typ string) []byte {
	t.Helper()
	payload, err := json.Marshal(domainEvent.BookingPayload{
		OrderID:       "ord-1",
		Amount:        "60.00",
		Currency:      "EUR",
		PaymentMethod: "hostedform",
		CustomerEmail: "ann@example.test",
	})
	require.NoError(t, err)
	value, err := json.Marshal(domainEvent.Message{
		ID:            id,
		Type:          typ,
		CorrelationID: "ord-1",
		Producer:      "booking-api",
		OccurredAt:    time.Now(),
		Payload:       payload,
	})
	require.NoError(t, err)
	return value
}

func TestHandle_SendsOncePerEvent(t *testing.T) {
	ctx := context.Background()
	mailer := &recordingMailer{}
	inboxStore := memory.NewInboxStore()
	n := New(memory.Transactor{}, inboxStore, mailer)

	value := envelope(t, "evt-1", domainEvent.TypeOrderPaid)
	require.NoError(t, n.Handle(ctx, value))
	require.NoError(t, n.Handle(ctx, value))

	require.Equal(t, 1, mailer.count())
	c := mailer.sent[0]
	assert.Equal(t, domainEvent.TypeOrderPaid, c.Kind)
	assert.Equal(t, "ord-1", c.OrderID)
	assert.Equal(t, "60.00", c.Amount)
	assert.Equal(t, "ann@example.test", c.CustomerEmail)

	seen, err := inboxStore.ListByCorrelationID(ctx, "ord-1")
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, DefaultConsumerName, seen[0].Consumer)
}

func TestHandle_IgnoresOtherMessages(t *testing.T) {
	mailer := &recordingMailer{}
	n := New(memory.Transactor{}, memory.NewInboxStore(), mailer)

	assert.NoError(t, n.Handle(context.Background(), []byte("not json")))
	assert.NoError(t, n.Handle(context.Background(), envelope(t, "evt-2", "SomethingElse")))
	assert.Zero(t, mailer.count())
}

type flakyInbox struct {
	inbox.Repository
	mu       sync.Mutex
	failures int
}

func (f *flakyInbox) SaveIfNotExists(ctx context.Context, consumer, eventID, eventType, correlationID string) (bool, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return false, errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.Repository.SaveIfNotExists(ctx, consumer, eventID, eventType, correlationID)
}

type sliceSource struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	done      context.CancelFunc
}

func (s *sliceSource) FetchMessage(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	if len(s.msgs) == 0 {
		s.mu.Unlock()
		s.done()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := s.msgs[0]
	s.msgs = s.msgs[1:]
	s.mu.Unlock()
	return msg, nil
}

func (s *sliceSource) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

func TestRun_RetriesThenCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailer := &recordingMailer{}
	n := New(memory.Transactor{}, &flakyInbox{Repository: memory.NewInboxStore(), failures: 2}, mailer)
	n.backoff = func(int) time.Duration { return 0 }

	src := &sliceSource{
		msgs: []kafka.Message{
			{Offset: 1, Value: envelope(t, "evt-1", domainEvent.TypeBookingConfirmed)},
			{Offset: 2, Value: envelope(t, "evt-1", domainEvent.TypeBookingConfirmed)},
		},
		done: cancel,
	}

	require.NoError(t, n.Run(ctx, src))
	assert.Equal(t, 1, mailer.count())
	assert.Equal(t, []int64{1, 2}, src.committed)
}

func TestRun_DropsAfterMaxRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailer := &recordingMailer{}
	n := New(memory.Transactor{}, &flakyInbox{Repository: memory.NewInboxStore(), failures: 100}, mailer)
	n.backoff = func(int) time.Duration { return 0 }
	n.maxRetries = 2

	src := &sliceSource{
		msgs: []kafka.Message{{Offset: 7, Value: envelope(t, "evt-9", domainEvent.TypeOrderPaid)}},
		done: cancel,
	}

	require.NoError(t, n.Run(ctx, src))
	assert.Zero(t, mailer.count())
	assert.Equal(t, []int64{7}, src.committed)
}
