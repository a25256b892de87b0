package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	dirtyCountersKey = "social:counters:dirty"
	hotKeyScoresKey  = "social:hotkey:scores"
)

// CounterStore tracks which accounts need their counters recomputed:
// accounts whose write failed after the edge may have changed (dirty) and
// accounts that are read the most (hot).
type CounterStore interface {
	MarkDirty(ctx context.Context, userIDs ...string) error
	// PeekDirty returns up to n of the least recently marked accounts
	// without removing them.
	PeekDirty(ctx context.Context, n int64) ([]DirtyEntry, error)
	// AckDirty removes entries that have not been marked again since they
	// were peeked.
	AckDirty(ctx context.Context, entries ...DirtyEntry) error
	RecordAccess(ctx context.Context, userID string) error
	GetTopHotKeys(ctx context.Context, n int64) ([]string, error)
	ResetHotKeyScores(ctx context.Context) error
	Close() error
}

// DirtyEntry is one queued account and the mark it was read with.
type DirtyEntry struct {
	UserID string
	Mark   float64
}

// RedisCounterStore implements CounterStore backed by Redis sorted sets.
type RedisCounterStore struct {
	client    *redis.Client
	hotKeyTTL time.Duration
}

// NewRedisCounterStore dials Redis and verifies the connection.
func NewRedisCounterStore(address, password string, db int, hotKeyTTL time.Duration) (*RedisCounterStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCounterStore{client: client, hotKeyTTL: hotKeyTTL}, nil
}

// Client exposes the connection so other Redis users can share it.
func (s *RedisCounterStore) Client() *redis.Client {
	return s.client
}

// markDirtyScript sets each member's score to now, or one past its current
// score when that is not older. Every mark changes the score, so an ack
// taken before the mark can no longer remove it.
var markDirtyScript = redis.NewScript(`
local now = tonumber(ARGV[1])
for i = 2, #ARGV do
  local score = now
  local cur = redis.call("ZSCORE", KEYS[1], ARGV[i])
  if cur and tonumber(cur) >= score then
    score = tonumber(cur) + 1
  end
  redis.call("ZADD", KEYS[1], score, ARGV[i])
end
return #ARGV - 1
`)

// ackDirtyScript removes members whose score still equals the peeked one.
var ackDirtyScript = redis.NewScript(`
local removed = 0
for i = 1, #ARGV, 2 do
  local cur = redis.call("ZSCORE", KEYS[1], ARGV[i])
  if cur and tonumber(cur) == tonumber(ARGV[i + 1]) then
    removed = removed + redis.call("ZREM", KEYS[1], ARGV[i])
  end
end
return removed
`)

// MarkDirty queues accounts for recomputation.
func (s *RedisCounterStore) MarkDirty(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(userIDs)+1)
	args = append(args, time.Now().UnixMilli())
	for _, id := range userIDs {
		args = append(args, id)
	}
	if err := markDirtyScript.Run(ctx, s.client, []string{dirtyCountersKey}, args...).Err(); err != nil {
		return fmt.Errorf("redis mark dirty: %w", err)
	}
	return nil
}

// PeekDirty implements CounterStore.
func (s *RedisCounterStore) PeekDirty(ctx context.Context, n int64) ([]DirtyEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := s.client.ZRangeWithScores(ctx, dirtyCountersKey, 0, n-1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis peek dirty: %w", err)
	}
	entries := make([]DirtyEntry, 0, len(zs))
	for _, z := range zs {
		var id string
		switch m := z.Member.(type) {
		case string:
			id = m
		default:
			id = fmt.Sprint(m)
		}
		entries = append(entries, DirtyEntry{UserID: id, Mark: z.Score})
	}
	return entries, nil
}

// AckDirty implements CounterStore.
func (s *RedisCounterStore) AckDirty(ctx context.Context, entries ...DirtyEntry) error {
	if len(entries) == 0 {
		return nil
	}
	args := make([]interface{}, 0, 2*len(entries))
	for _, e := range entries {
		args = append(args, e.UserID, strconv.FormatFloat(e.Mark, 'f', -1, 64))
	}
	if err := ackDirtyScript.Run(ctx, s.client, []string{dirtyCountersKey}, args...).Err(); err != nil {
		return fmt.Errorf("redis ack dirty: %w", err)
	}
	return nil
}

// recordAccessScript bumps a member's score and, when the set is new, gives
// it a TTL so scores stop accumulating if nobody resets them.
var recordAccessScript = redis.NewScript(`
local score = redis.call("ZINCRBY", KEYS[1], 1, ARGV[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 and redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return score
`)

// RecordAccess increments the access score for a user in the hot key set.
func (s *RedisCounterStore) RecordAccess(ctx context.Context, userID string) error {
	ttl := strconv.FormatInt(s.hotKeyTTL.Milliseconds(), 10)
	err := recordAccessScript.Run(ctx, s.client, []string{hotKeyScoresKey}, userID, ttl).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis record access: %w", err)
	}
	return nil
}

// GetTopHotKeys returns the top-n most accessed user IDs.
func (s *RedisCounterStore) GetTopHotKeys(ctx context.Context, n int64) ([]string, error) {
	keys, err := s.client.ZRevRange(ctx, hotKeyScoresKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get top hot keys: %w", err)
	}
	return keys, nil
}

// ResetHotKeyScores deletes the hot key scores sorted set.
func (s *RedisCounterStore) ResetHotKeyScores(ctx context.Context) error {
	if err := s.client.Del(ctx, hotKeyScoresKey).Err(); err != nil {
		return fmt.Errorf("redis reset hot key scores: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisCounterStore) Close() error {
	return s.client.Close()
}

var _ CounterStore = (*RedisCounterStore)(nil)
