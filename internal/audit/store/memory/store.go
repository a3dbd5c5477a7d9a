// Package memory keeps the most recent audit events in a fixed-size ring.
package memory

import (
	"context"
	"sync"

	"authguard/internal/audit/models"
)

const DefaultCapacity = 10_000

// Store is a bounded, thread-safe ring of events. When full, the oldest event is
// overwritten.
type Store struct {
	mu       sync.Mutex
	events   []models.Event
	head     int // next write position
	count    int
	capacity int
	dropped  int64
}

func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		events:   make([]models.Event, capacity),
		capacity: capacity,
	}
}

func (s *Store) Record(_ context.Context, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == s.capacity {
		s.dropped++
	} else {
		s.count++
	}
	event.ReasonCodes = append([]string(nil), event.ReasonCodes...)
	s.events[s.head] = event
	s.head = (s.head + 1) % s.capacity
	return nil
}

// Recent returns up to limit events, newest first. A non-positive limit returns all.
func (s *Store) Recent(limit int) []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Event, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, s.events[(s.head-i+s.capacity)%s.capacity])
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Dropped returns how many events were overwritten before being read.
func (s *Store) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
