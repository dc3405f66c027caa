package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an append-only in-process event log. The surrounding
// repository swaps in a durable store; the core only needs the append
// contract.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
	now    func() time.Time
}

// NewMemoryStore returns an empty event log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Append implements EventStore.
func (s *MemoryStore) Append(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  s.now(),
	}
	s.events = append(s.events, ev)
	return ev, nil
}

// Events returns a copy of the recorded log.
func (s *MemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByTopic returns the recorded events for one topic, in append order.
func (s *MemoryStore) ByTopic(topic string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}
