package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewLocker(client, logger), mr
}

func TestLocker_ExclusiveUntilRelease(t *testing.T) {
	l, _ := setupTestLocker(t)
	ctx := context.Background()

	lock, err := l.Acquire(ctx, "broadcast:a1:pl", time.Minute)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := l.Acquire(ctx, "broadcast:a1:pl", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Errorf("second acquire err = %v, want ErrLockHeld", err)
	}
	if _, err := l.Acquire(ctx, "broadcast:a1:en", time.Minute); err != nil {
		t.Errorf("other language should not be blocked: %v", err)
	}

	lock.Release(ctx)

	if _, err := l.Acquire(ctx, "broadcast:a1:pl", time.Minute); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
}

func TestLocker_ExpiresAfterTTL(t *testing.T) {
	l, mr := setupTestLocker(t)
	ctx := context.Background()

	if _, err := l.Acquire(ctx, "broadcast:a2:en", time.Second); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := l.Acquire(ctx, "broadcast:a2:en", time.Second); err != nil {
		t.Errorf("lock should have expired: %v", err)
	}
}

func TestLock_ReleaseKeepsForeignLock(t *testing.T) {
	l, mr := setupTestLocker(t)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "broadcast:a3:pl", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	mr.FastForward(2 * time.Second)

	if _, err := l.Acquire(ctx, "broadcast:a3:pl", time.Minute); err != nil {
		t.Fatal(err)
	}
	stale.Release(ctx)

	if !mr.Exists(lockKey("broadcast:a3:pl")) {
		t.Error("releasing an expired lock must not delete the new holder's key")
	}
}
