package unread

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"travelmate/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// Kind selects one of the two live counters of a user.
type Kind string

const (
	KindMessages Kind = "messages"
	KindRequests Kind = "requests"
)

// CounterStore keeps live badge counters. Adjustments to a user that has not
// been seeded are dropped; the next Reconcile establishes the value.
type CounterStore interface {
	Set(ctx context.Context, userID string, counters models.Counters) error
	Add(ctx context.Context, userID string, kind Kind, delta int64) error
	// SubClamped subtracts n, never going below zero.
	SubClamped(ctx context.Context, userID string, kind Kind, n int64) error
	// Get reports false when the user has no seeded counters.
	Get(ctx context.Context, userID string) (models.Counters, bool, error)
}

func counterKey(userID string, kind Kind) string {
	return fmt.Sprintf("counters:%s:%s", userID, kind)
}

// RedisCounterStore keeps counters in Redis under counters:{user}:{kind}.
type RedisCounterStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCounterStore(rdb *redis.Client, ttl time.Duration) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb, ttl: ttl}
}

var addIfExistsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return v
`)

var subClampedScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  return -1
end
local v = tonumber(cur) - tonumber(ARGV[1])
if v < 0 then
  v = 0
end
redis.call('SET', KEYS[1], tostring(v), 'EX', ARGV[2])
return v
`)

func (s *RedisCounterStore) ttlSeconds() int64 {
	secs := int64(s.ttl / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return secs
}

func (s *RedisCounterStore) Set(ctx context.Context, userID string, counters models.Counters) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, counterKey(userID, KindMessages), counters.UnreadMessages, s.ttl)
		pipe.Set(ctx, counterKey(userID, KindRequests), counters.PendingRequests, s.ttl)
		return nil
	})
	return err
}

func (s *RedisCounterStore) Add(ctx context.Context, userID string, kind Kind, delta int64) error {
	return addIfExistsScript.Run(ctx, s.rdb, []string{counterKey(userID, kind)}, delta, s.ttlSeconds()).Err()
}

func (s *RedisCounterStore) SubClamped(ctx context.Context, userID string, kind Kind, n int64) error {
	return subClampedScript.Run(ctx, s.rdb, []string{counterKey(userID, kind)}, n, s.ttlSeconds()).Err()
}

func (s *RedisCounterStore) Get(ctx context.Context, userID string) (models.Counters, bool, error) {
	vals, err := s.rdb.MGet(ctx, counterKey(userID, KindMessages), counterKey(userID, KindRequests)).Result()
	if err != nil {
		return models.Counters{}, false, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return models.Counters{}, false, nil
	}

	messages, err := parseCounter(vals[0])
	if err != nil {
		return models.Counters{}, false, err
	}
	requests, err := parseCounter(vals[1])
	if err != nil {
		return models.Counters{}, false, err
	}
	return models.Counters{UnreadMessages: messages, PendingRequests: requests}, true, nil
}

func parseCounter(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, errors.New("unexpected counter value type")
	}
	return strconv.ParseInt(s, 10, 64)
}

// MemoryCounterStore is a process-local CounterStore for single-instance runs.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*models.Counters
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]*models.Counters)}
}

func (s *MemoryCounterStore) Set(_ context.Context, userID string, counters models.Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := counters
	s.counters[userID] = &c
	return nil
}

func (s *MemoryCounterStore) Add(_ context.Context, userID string, kind Kind, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[userID]; ok {
		*field(c, kind) += delta
	}
	return nil
}

func (s *MemoryCounterStore) SubClamped(_ context.Context, userID string, kind Kind, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[userID]; ok {
		v := field(c, kind)
		*v -= n
		if *v < 0 {
			*v = 0
		}
	}
	return nil
}

func (s *MemoryCounterStore) Get(_ context.Context, userID string) (models.Counters, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID]
	if !ok {
		return models.Counters{}, false, nil
	}
	return *c, true, nil
}

func field(c *models.Counters, kind Kind) *int64 {
	if kind == KindRequests {
		return &c.PendingRequests
	}
	return &c.UnreadMessages
}
