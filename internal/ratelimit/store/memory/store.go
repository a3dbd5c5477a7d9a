package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"authguard/internal/ratelimit/models"
	"authguard/pkg/domain"
)

// DefaultCapacity bounds the number of tracked identifier/action pairs.
const DefaultCapacity = 100_000

// Store is a single-process sliding-window counter. The least recently used keys are
// evicted once capacity is reached, so an attacker rotating identifiers cannot grow
// memory without bound.
type Store struct {
	mu      sync.Mutex
	windows *lru.Cache[string, *slidingWindow]
	now     func() time.Time
}

// slidingWindow holds the attempt timestamps still inside the window, oldest first.
type slidingWindow struct {
	timestamps []time.Time
}

// Option configures a Store.
type Option func(*config)

type config struct {
	capacity int
	now      func() time.Time
}

// WithCapacity sets the LRU bound.
func WithCapacity(n int) Option {
	return func(c *config) { c.capacity = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty store.
func New(opts ...Option) (*Store, error) {
	cfg := config{capacity: DefaultCapacity, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.capacity <= 0 {
		return nil, errors.New("memory store capacity must be positive")
	}
	cache, err := lru.New[string, *slidingWindow](cfg.capacity)
	if err != nil {
		return nil, err
	}
	return &Store{windows: cache, now: cfg.now}, nil
}

// Check records an attempt if it fits the policy and reports the outcome.
func (s *Store) Check(_ context.Context, identifier string, action domain.Action, policy models.Policy) (*models.Verdict, error) {
	key := models.Key(action, identifier)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.windows.Get(key)
	if !ok {
		sw = &slidingWindow{}
		s.windows.Add(key, sw)
	}
	sw.cleanup(now, policy.Window)

	allowed := len(sw.timestamps) < policy.MaxAttempts
	if allowed {
		sw.timestamps = append(sw.timestamps, now)
	}
	resetAt := now.Add(policy.Window)
	if len(sw.timestamps) > 0 {
		resetAt = sw.timestamps[0].Add(policy.Window)
	}
	return models.NewVerdict(allowed, resetAt.Sub(now)), nil
}

// Reset forgets all attempts for the identifier and action.
func (s *Store) Reset(_ context.Context, identifier string, action domain.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows.Remove(models.Key(action, identifier))
	return nil
}

// Count returns the attempts currently inside the window.
func (s *Store) Count(identifier string, action domain.Action, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sw, ok := s.windows.Peek(models.Key(action, identifier))
	if !ok {
		return 0
	}
	sw.cleanup(s.now(), window)
	return len(sw.timestamps)
}

// Len returns the number of tracked keys.
func (s *Store) Len() int {
	return s.windows.Len()
}

// cleanup drops timestamps that have left the window.
func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
