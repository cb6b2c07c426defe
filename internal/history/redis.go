package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "history:"

// RedisStore keeps per-user history in a Redis list so multiple server
// processes share one log. Same bound and eviction semantics as
// MemoryStore.
type RedisStore struct {
	client *redis.Client
	keep   int
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. keep <= 0 uses DefaultKeep; a
// zero ttl means entries never expire.
func NewRedisStore(client *redis.Client, keep int, ttl time.Duration) *RedisStore {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &RedisStore{client: client, keep: keep, ttl: ttl}
}

// Conn dials Redis and verifies the connection.
func Conn(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s): %w", addr, err)
	}
	return client, nil
}

// Append pushes entries and trims the list to the bound, oldest first out.
func (s *RedisStore) Append(ctx context.Context, userID string, entries ...Entry) error {
	key := redisKeyPrefix + userID
	pipe := s.client.TxPipeline()
	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal history entry: %w", err)
		}
		pipe.RPush(ctx, key, payload)
	}
	pipe.LTrim(ctx, key, int64(-s.keep), -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Recent returns up to n of the newest entries in chronological order.
func (s *RedisStore) Recent(ctx context.Context, userID string, n int) ([]Entry, error) {
	if n <= 0 || n > s.keep {
		n = s.keep
	}
	raw, err := s.client.LRange(ctx, redisKeyPrefix+userID, int64(-n), -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
