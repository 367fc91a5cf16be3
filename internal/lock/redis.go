package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Redis is a Locker backed by redislock. Keys are prefixed with "lock:".
type Redis struct {
	client *redislock.Client
}

// NewRedis wraps an existing go-redis client.
func NewRedis(rdb redis.UniversalClient) *Redis {
	return &Redis{client: redislock.New(rdb)}
}

// Obtain sets the key with the given ttl, failing with ErrNotObtained when
// another holder has it.
func (r *Redis) Obtain(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	l, err := r.client.Obtain(ctx, "lock:"+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain redis lock %s: %w", key, err)
	}
	return redisLease{l}, nil
}

type redisLease struct {
	l *redislock.Lock
}

// Release is a no-op when the lock already expired.
func (le redisLease) Release(ctx context.Context) error {
	err := le.l.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
