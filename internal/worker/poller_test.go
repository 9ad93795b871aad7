package worker

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
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/outbox"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/infrastructure/memory"
)

type sent struct {
	key     string
	msg     domainEvent.Message
	headers []kafka.Header
}

type fakePublisher struct {
	mu     sync.Mutex
	sent   []sent
	failOn map[string]bool
}

func (p *fakePublisher) SendMessage(_ context.Context, key, value []byte, headers ...kafka.Header) error {
	var msg domainEvent.Message
	if err := json.Unmarshal(value, &msg); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn[msg.ID] {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, sent{key: string(key), msg: msg, headers: headers})
	return nil
}

func seed(t *testing.T, repo *memory.OutboxStore, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, repo.Create(context.Background(), &outbox.Event{
			ID:            id,
			EventType:     domainEvent.TypeOrderPaid,
			Payload:       json.RawMessage(`{"order_id":"ord-` + id + `","amount":"60.00"}`),
			Status:        outbox.StatusNew,
			CorrelationID: "ord-" + id,
			Producer:      "booking-api",
			CreatedAt:     time.Now(),
		}))
	}
}

func TestProcessBatch_PublishesAndMarksProcessed(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxStore()
	seed(t, repo, "e1", "e2")
	pub := &fakePublisher{}

	require.NoError(t, NewOutboxPoller(repo, pub).processBatch(ctx))

	require.Len(t, pub.sent, 2)
	first := pub.sent[0]
	assert.Equal(t, "ord-e1", first.key)
	assert.Equal(t, "e1", first.msg.ID)
	assert.Equal(t, domainEvent.TypeOrderPaid, first.msg.Type)
	assert.JSONEq(t, `{"order_id":"ord-e1","amount":"60.00"}`, string(first.msg.Payload))
	require.Len(t, first.headers, 1)
	assert.Equal(t, domainEvent.TypeOrderPaid, string(first.headers[0].Value))

	events, err := repo.ListByCorrelationID(ctx, "ord-e1")
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusProcessed, events[0].Status)

	// nothing left to send
	require.NoError(t, NewOutboxPoller(repo, pub).processBatch(ctx))
	assert.Len(t, pub.sent, 2)
}

func TestProcessBatch_FailedSendIsRetried(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxStore()
	seed(t, repo, "ok", "bad")
	pub := &fakePublisher{failOn: map[string]bool{"bad": true}}
	poller := NewOutboxPoller(repo, pub)

	require.NoError(t, poller.processBatch(ctx))
	require.Len(t, pub.sent, 1)

	events, err := repo.ListByCorrelationID(ctx, "ord-bad")
	require.NoError(t, err)
	assert.Equal(t, outbox.StatusNew, events[0].Status)

	pub.failOn = nil
	require.NoError(t, poller.processBatch(ctx))
	require.Len(t, pub.sent, 2)
	assert.Equal(t, "bad", pub.sent[1].msg.ID)
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := memory.NewOutboxStore()
	seed(t, repo, "e1")
	pub := &fakePublisher{}
	poller := NewOutboxPoller(repo, pub)
	poller.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.sent) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
