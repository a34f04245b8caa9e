package redis

import (
	"context"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/paysvc/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Lua script for safe lock release (only owner can release)
var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock is a single-owner lock on one Redis key.
type DistributedLock struct {
	client   redis.Cmdable
	key      string
	value    string
	ttl      time.Duration
	acquired bool
}

// NewDistributedLock creates a lock on "lock:<key>" owned by a random token.
func NewDistributedLock(client redis.Cmdable, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    fmt.Sprintf("lock:%s", key),
		value:  uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire attempts to acquire the lock once.
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.acquired = ok
	return ok, nil
}

// AcquireWithRetry polls for the lock until it is free or attempts run out.
func (l *DistributedLock) AcquireWithRetry(ctx context.Context, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		ok, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%w: %s", domainErrors.ErrLockAcquisitionFailed, l.key)
}

// Release deletes the lock if it is still held by this owner.
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}

	n, err := releaseLockScript.Run(ctx, l.client, []string{l.key}, l.value).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	l.acquired = false
	if n == 0 {
		return domainErrors.ErrLockNotHeld
	}
	return nil
}

// Locker serializes work on a key across processes.
type Locker struct {
	client   redis.Cmdable
	ttl      time.Duration
	attempts int
	delay    time.Duration
	logger   zerolog.Logger
}

// NewLocker creates a Locker whose locks expire after ttl. Acquisition is
// retried for roughly one ttl before giving up.
func NewLocker(client redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *Locker {
	delay := 100 * time.Millisecond
	attempts := int(ttl / delay)
	if attempts < 1 {
		attempts = 1
	}
	return &Locker{
		client:   client,
		ttl:      ttl,
		attempts: attempts,
		delay:    delay,
		logger:   logger.With().Str("component", "locker").Logger(),
	}
}

// WithLock runs fn while holding the lock on key. It returns
// ErrLockAcquisitionFailed if the lock stays taken.
func (k *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lock := NewDistributedLock(k.client, key, k.ttl)
	if err := lock.AcquireWithRetry(ctx, k.attempts, k.delay); err != nil {
		return err
	}
	defer func() {
		// Release outlives a cancelled request context.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			k.logger.Warn().Err(err).Str("key", key).Msg("lock release failed")
		}
	}()

	return fn(ctx)
}
