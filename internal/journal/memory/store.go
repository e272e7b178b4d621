package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/payflow/checkout/internal/journal"
)

// Store retains webhook events in memory, for local development and tests.
type Store struct {
	mu     sync.RWMutex
	events map[string]journal.Event
	order  []string
}

func NewStore() *Store {
	return &Store{events: make(map[string]journal.Event)}
}

func (s *Store) Record(_ context.Context, event journal.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = uuid.NewString()
	s.events[event.ID] = event
	s.order = append(s.order, event.ID)
	return event.ID, nil
}

func (s *Store) AmendFailure(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return fmt.Errorf("webhook event %s not found", id)
	}
	event.FailureReason = reason
	s.events[id] = event
	return nil
}

// Events returns recorded events in receipt order, for tests.
func (s *Store) Events() []journal.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]journal.Event, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.events[id])
	}
	return result
}
