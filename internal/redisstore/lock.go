package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockTimeout = errors.New("timeout acquiring lock")
	ErrLockNotHeld = errors.New("lock not held by this instance")
)

const (
	defaultLockTTL   = 30 * time.Second
	acquireTimeout   = 5 * time.Second
	maxRetryAttempts = 3
)

// LockManager hands out table ownership locks so two gateway instances
// never drive the same table at once. Locks auto-expire, so a crashed
// holder frees its tables within the TTL.
type LockManager struct {
	client     *Client
	instanceID string
}

// Lock is one held table lock; release with Release.
type Lock struct {
	key     string
	value   string
	manager *LockManager
}

func NewLockManager(client *Client) *LockManager {
	return &LockManager{
		client:     client,
		instanceID: uuid.NewString(),
	}
}

// AcquireTableLock claims a table for this instance, retrying with
// backoff until the acquire window closes.
func (lm *LockManager) AcquireTableLock(ctx context.Context, tableID string) (*Lock, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	lockKey := "lock:table:" + tableID
	lockValue := lm.instanceID + ":" + uuid.NewString()

	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		acquired, err := lm.client.SetNX(acquireCtx, lockKey, lockValue, defaultLockTTL).Result()
		if err == nil && acquired {
			return &Lock{key: lockKey, value: lockValue, manager: lm}, nil
		}
		if err != nil {
			lm.client.logger.Error("lock attempt failed", "key", lockKey, "err", err)
		}

		select {
		case <-acquireCtx.Done():
			return nil, ErrLockTimeout
		case <-time.After(backoff(attempt)):
		}
	}
	return nil, ErrLockTimeout
}

// 500ms, 1s, 2s.
func backoff(attempt int) time.Duration {
	d := time.Duration(500*(1<<attempt)) * time.Millisecond
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	return d
}

// Release frees the lock. The Lua check ensures an expired-and-reacquired
// lock belonging to another instance is never deleted.
func (l *Lock) Release(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	result, err := script.Run(ctx, l.manager.client, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if result == int64(0) {
		return ErrLockNotHeld
	}
	return nil
}

// Extend pushes the expiry out for a long-running hold.
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("expire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
	result, err := script.Run(ctx, l.manager.client, []string{l.key}, l.value, int(ttl.Seconds())).Result()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if result == int64(0) {
		return ErrLockNotHeld
	}
	return nil
}
