package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyNamespace = "mse:ingest"

	// pendingIdempotencyTTL bounds how long a key stays claimed by a writer that never completes or releases it
	pendingIdempotencyTTL = 5 * time.Minute

	keyPending   = "pending"
	keyCompleted = "done"
)

// RedisIdempotency stores batch keys in Redis. A key is "pending" while its batch is being written and
// "done" once the batch committed.
type RedisIdempotency struct {
	rdb       redis.Cmdable
	ttl       time.Duration
	namespace string
}

// NewRedisIdempotency creates a Redis-backed key store. Zero ttl and empty namespace use defaults.
func NewRedisIdempotency(rdb redis.Cmdable, ttl time.Duration, namespace string) *RedisIdempotency {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	if namespace == "" {
		namespace = defaultIdempotencyNamespace
	}
	return &RedisIdempotency{rdb: rdb, ttl: ttl, namespace: namespace}
}

func (r *RedisIdempotency) redisKey(key string) string {
	return r.namespace + ":" + key
}

// Reserve claims the key as pending. It returns false when the key's batch already completed and
// ErrBatchInProgress when another writer holds it.
func (r *RedisIdempotency) Reserve(ctx context.Context, key string) (bool, error) {
	rk := r.redisKey(key)

	// a second attempt covers a pending key expiring between SETNX and GET
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.rdb.SetNX(ctx, rk, keyPending, pendingIdempotencyTTL).Result()
		if err != nil {
			return false, fmt.Errorf("redis setnx %s: %w", key, err)
		}
		if ok {
			return true, nil
		}

		state, err := r.rdb.Get(ctx, rk).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("redis get %s: %w", key, err)
		}
		if state == keyCompleted {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s", ErrBatchInProgress, key)
	}
	return false, fmt.Errorf("%w: %s", ErrBatchInProgress, key)
}

// Complete marks the key's batch as committed for the full TTL
func (r *RedisIdempotency) Complete(ctx context.Context, key string) error {
	if err := r.rdb.Set(ctx, r.redisKey(key), keyCompleted, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Release deletes the key so the batch can be retried
func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
