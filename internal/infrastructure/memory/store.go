// Package memory holds in-process implementations of the repositories, used
// by tests and by single-instance deployments with STORE_DRIVER=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/booking"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/inbox"
	"github.com/Aduraleke/firstclasstransfers-sub001/internal/domain/outbox"
)

// OrderStore implements booking.Repository. Every method copies orders in
// and out so callers never share state with the map.
type OrderStore struct {
	mu     sync.Mutex
	orders map[string]*booking.Order
	now    func() time.Time
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]*booking.Order),
		now:    time.Now,
	}
}

func (s *OrderStore) Create(_ context.Context, o *booking.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("insert booking order %s: %w", o.ID, booking.ErrOrderExists)
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *OrderStore) GetByID(_ context.Context, id string) (*booking.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, booking.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *OrderStore) AttachProviderRefs(_ context.Context, id string, refs booking.ProviderRefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return booking.ErrOrderNotFound
	}
	if o.PaymentStatus != booking.StatusPendingPayment {
		return nil
	}
	mergeRefs(&o.ProviderRefs, refs)
	o.UpdatedAt = s.now()
	return nil
}

// MarkPaidIfPending checks and sets under one lock, so duplicates racing on
// the same order see exactly one winner.
func (s *OrderStore) MarkPaidIfPending(_ context.Context, id string, refs booking.ProviderRefs) (bool, *booking.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return false, nil, booking.ErrOrderNotFound
	}
	if !booking.CanTransitionTo(o.PaymentStatus, booking.StatusPaid) {
		return false, cloneOrder(o), nil
	}

	now := s.now()
	o.PaymentStatus = booking.StatusPaid
	mergeRefs(&o.ProviderRefs, refs)
	o.PaidAt = &now
	o.UpdatedAt = now
	return true, cloneOrder(o), nil
}

func mergeRefs(dst *booking.ProviderRefs, src booking.ProviderRefs) {
	if src.OrderID != "" {
		dst.OrderID = src.OrderID
	}
	if src.PublicID != "" {
		dst.PublicID = src.PublicID
	}
	if src.TransactionID != "" {
		dst.TransactionID = src.TransactionID
	}
}

func cloneOrder(o *booking.Order) *booking.Order {
	c := *o
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	return &c
}

type OutboxStore struct {
	mu     sync.Mutex
	events []*outbox.Event
}

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{}
}

func (s *OutboxStore) Create(_ context.Context, e *outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *e
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	s.events = append(s.events, &c)
	return nil
}

func (s *OutboxStore) FetchBatch(_ context.Context, limit int) ([]*outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch []*outbox.Event
	for _, e := range s.events {
		if len(batch) == limit {
			break
		}
		if e.Status != outbox.StatusNew {
			continue
		}
		e.Status = outbox.StatusProcessing
		e.UpdatedAt = time.Now()
		c := *e
		batch = append(batch, &c)
	}
	return batch, nil
}

func (s *OutboxStore) MarkProcessed(_ context.Context, ids []string) error {
	s.setStatus(ids, outbox.StatusProcessed)
	return nil
}

func (s *OutboxStore) MarkFailed(_ context.Context, ids []string) error {
	s.setStatus(ids, outbox.StatusNew)
	return nil
}

func (s *OutboxStore) setStatus(ids []string, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, e := range s.events {
		if _, ok := set[e.ID]; ok {
			e.Status = status
			e.UpdatedAt = time.Now()
		}
	}
}

func (s *OutboxStore) ListByCorrelationID(_ context.Context, correlationID string) ([]*outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*outbox.Event
	for _, e := range s.events {
		if e.CorrelationID == correlationID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

type InboxStore struct {
	mu     sync.Mutex
	events map[string]*inbox.Event
}

func NewInboxStore() *InboxStore {
	return &InboxStore{events: make(map[string]*inbox.Event)}
}

func (s *InboxStore) SaveIfNotExists(_ context.Context, consumer, eventID, eventType, correlationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := consumer + "/" + eventID
	if _, ok := s.events[key]; ok {
		return false, nil
	}
	s.events[key] = &inbox.Event{
		Consumer:      consumer,
		EventID:       eventID,
		EventType:     eventType,
		CorrelationID: correlationID,
		ProcessedAt:   time.Now(),
	}
	return true, nil
}

func (s *InboxStore) ListByCorrelationID(_ context.Context, correlationID string) ([]*inbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*inbox.Event
	for _, e := range s.events {
		if e.CorrelationID == correlationID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProcessedAt.Before(out[j].ProcessedAt) })
	return out, nil
}

// Transactor runs fn directly. The stores above are individually atomic;
// there is no rollback across them.
type Transactor struct{}

func (Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
