package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock already held")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker hands out Redis SET NX PX locks.
type Locker struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewLocker(redisClient *redis.Client, logger *slog.Logger) *Locker {
	return &Locker{redisClient: redisClient, logger: logger}
}

// Lock is a held lock. Release it when done; it also expires after its TTL.
type Lock struct {
	locker *Locker
	key    string
	token  string
}

func lockKey(name string) string {
	return fmt.Sprintf("lock:%s", name)
}

// Acquire takes the named lock for ttl or returns ErrLockHeld.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	key := lockKey(name)

	ok, err := l.redisClient.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{locker: l, key: key, token: token}, nil
}

// Release frees the lock unless it expired and was taken by someone else.
func (lk *Lock) Release(ctx context.Context) {
	if err := releaseScript.Run(ctx, lk.locker.redisClient, []string{lk.key}, lk.token).Err(); err != nil {
		lk.locker.logger.Error("failed to release lock", "key", lk.key, "error", err)
	}
}
