package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-crm/internal/logger"
	"order-crm/internal/utils"

	"github.com/go-redis/redis/v8"
)

const lockPrefix = "crm_lock:"

// ErrLockTimeout is returned when a lock could not be obtained before the
// wait deadline.
var ErrLockTimeout = errors.New("timed out waiting for lock")

// unlockScript deletes the key only while it still holds the caller's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	Client       *redis.Client
	Logger       *logger.Logger
	PollInterval time.Duration
}

func NewRedis(client *redis.Client, l *logger.Logger) *Redis {
	return &Redis{
		Client:       client,
		Logger:       l,
		PollInterval: 50 * time.Millisecond,
	}
}

// IsLocked reports whether name is currently held by anyone.
func (r *Redis) IsLocked(ctx context.Context, name string) (bool, error) {
	_, err := r.Client.Get(ctx, lockPrefix+name).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TryLock takes name for owner if it is free. The lock expires after ttl.
func (r *Redis) TryLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	return r.Client.SetNX(ctx, lockPrefix+name, owner, ttl).Result()
}

// Unlock releases name only if owner still holds it.
func (r *Redis) Unlock(ctx context.Context, name, owner string) error {
	err := unlockScript.Run(ctx, r.Client, []string{lockPrefix + name}, owner).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

// Acquire blocks until name is taken, wait elapses or ctx is done. The
// returned release function is safe to call more than once.
func (r *Redis) Acquire(ctx context.Context, name string, ttl, wait time.Duration) (func(), error) {
	owner := utils.GenerateID("lock")
	deadline := time.Now().Add(wait)

	interval := r.PollInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	for {
		ok, err := r.TryLock(ctx, name, owner, ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", name, err)
		}
		if ok {
			released := false
			return func() {
				if released {
					return
				}
				released = true
				if err := r.Unlock(context.Background(), name, owner); err != nil && r.Logger != nil {
					r.Logger.Warn("REDIS", fmt.Sprintf("Failed to release lock %s: %v", name, err))
				}
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}
