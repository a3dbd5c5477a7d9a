// Package redis is the primary rate limit backend: a sliding window kept in a Redis
// sorted set per identifier and action.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"authguard/internal/ratelimit/models"
	"authguard/pkg/domain"
	"authguard/pkg/platform/sentinel"
)

// slidingWindowScript trims expired attempts, admits the new one if the budget
// allows, and returns {allowed, count, oldestScoreMs} in one atomic step.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = now
local head = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if head[2] then
  oldest = tonumber(head[2])
end
return {allowed, count, oldest}
`)

// Store implements ports.Backend and ports.Resetter on Redis.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix namespaces keys when the Redis instance is shared.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps an existing client.
func New(client redis.UniversalClient, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	s := &Store{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Check records an attempt atomically and reports whether it fits the policy.
func (s *Store) Check(ctx context.Context, identifier string, action domain.Action, policy models.Policy) (*models.Verdict, error) {
	now := s.now()
	nowMs := now.UnixMilli()
	windowMs := policy.Window.Milliseconds()

	res, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.key(action, identifier)},
		nowMs, windowMs, policy.MaxAttempts, fmt.Sprintf("%d-%s", nowMs, uuid.NewString()),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis sliding window: %w: %w", sentinel.ErrUnavailable, err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("redis sliding window returned %d values: %w", len(res), sentinel.ErrNoData)
	}

	resetAt := time.UnixMilli(res[2] + windowMs)
	return models.NewVerdict(res[0] == 1, resetAt.Sub(now)), nil
}

// Reset deletes the counter.
func (s *Store) Reset(ctx context.Context, identifier string, action domain.Action) error {
	if err := s.client.Del(ctx, s.key(action, identifier)).Err(); err != nil {
		return fmt.Errorf("redis reset: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) key(action domain.Action, identifier string) string {
	return s.keyPrefix + models.Key(action, identifier)
}
