package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisStore keeps rate limit buckets in Redis so limits hold across portal
// instances. Each bucket is a JSON list of attempt timestamps with a TTL equal
// to the rule window.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client in a Store.
func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]time.Time, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ratelimit: load %q: %w", key, err)
	}

	var stamps []int64
	if err := json.Unmarshal([]byte(raw), &stamps); err != nil {
		// A corrupt bucket resets rather than blocking every request on it.
		return nil, nil
	}

	attempts := make([]time.Time, 0, len(stamps))
	for _, stamp := range stamps {
		attempts = append(attempts, time.Unix(0, stamp))
	}
	return attempts, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, attempts []time.Time, ttl time.Duration) error {
	if len(attempts) == 0 {
		if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
			return fmt.Errorf("ratelimit: delete %q: %w", key, err)
		}
		return nil
	}

	stamps := make([]int64, 0, len(attempts))
	for _, at := range attempts {
		stamps = append(stamps, at.UnixNano())
	}

	raw, err := json.Marshal(stamps)
	if err != nil {
		return fmt.Errorf("ratelimit: encode %q: %w", key, err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("ratelimit: save %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		cleared int
	)

	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return cleared, fmt.Errorf("ratelimit: scan: %w", err)
		}

		if len(keys) > 0 {
			removed, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return cleared, fmt.Errorf("ratelimit: clear: %w", err)
			}
			cleared += int(removed)
		}

		cursor = next
		if cursor == 0 {
			return cleared, nil
		}
	}
}
