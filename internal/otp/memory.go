package otp

import (
	"context"
	"sync"
	"time"

	"github.com/spot-sort/issue-service/internal/domain"
)

// MemoryStore keeps tickets in process memory. Tickets do not survive a
// restart and are not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	tickets map[string]Ticket
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tickets: make(map[string]Ticket)}
}

func (s *MemoryStore) Save(_ context.Context, ticket Ticket) error {
	s.mu.Lock()
	s.tickets[ticket.ID] = ticket
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Redeem(_ context.Context, id, code string, kind domain.DraftKind, now time.Time) (domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return domain.Draft{}, ErrNotFound
	}
	if ticket.Draft.Kind != kind {
		return domain.Draft{}, ErrWrongKind
	}
	if now.After(ticket.ExpiresAt) {
		delete(s.tickets, id)
		return domain.Draft{}, ErrExpired
	}
	if ticket.Code != code {
		return domain.Draft{}, ErrMismatch
	}
	delete(s.tickets, id)
	return ticket.Draft, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.tickets, id)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored tickets, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

// Sweep evicts tickets that expired before now and returns how many.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, ticket := range s.tickets {
		if now.After(ticket.ExpiresAt) {
			delete(s.tickets, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on every interval until ctx is done. onSweep, when set,
// receives the count of each sweep.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := s.Sweep(now)
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}
