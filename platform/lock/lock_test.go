package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLockerWithClient(client, time.Minute, wait), mr
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	locker, _ := newTestRedisLocker(t, 150*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "conv-1")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := locker.Acquire(ctx, "conv-1"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired while held, got %v", err)
	}

	other, err := locker.Acquire(ctx, "conv-2")
	if err != nil {
		t.Fatalf("expected independent key to be free, got %v", err)
	}
	other()

	release()
	release()

	again, err := locker.Acquire(ctx, "conv-1")
	if err != nil {
		t.Fatalf("expected lock to be free after release, got %v", err)
	}
	again()
}

func TestRedisLockerReleaseKeepsForeignToken(t *testing.T) {
	locker, mr := newTestRedisLocker(t, 100*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "conv-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// Simulate expiry followed by another holder taking the key.
	if err := mr.Set(keyPrefix+"conv-1", "someone-else"); err != nil {
		t.Fatalf("miniredis set: %v", err)
	}
	release()

	got, err := mr.Get(keyPrefix + "conv-1")
	if err != nil || got != "someone-else" {
		t.Fatalf("expected foreign token to survive release, got %q (%v)", got, err)
	}
}

func TestRedisLockerExpiresAfterTTL(t *testing.T) {
	locker, mr := newTestRedisLocker(t, 100*time.Millisecond)
	ctx := context.Background()

	if _, err := locker.Acquire(ctx, "conv-1"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	release, err := locker.Acquire(ctx, "conv-1")
	if err != nil {
		t.Fatalf("expected expired lock to be reacquirable, got %v", err)
	}
	release()
}

func TestLocalLockerGivesUpAfterWait(t *testing.T) {
	locker := NewLocalLocker(50 * time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "conv-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer release()

	if _, err := locker.Acquire(ctx, "conv-1"); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
	other, err := locker.Acquire(ctx, "conv-2")
	if err != nil {
		t.Fatalf("expected independent key to be free, got %v", err)
	}
	other()
}

func TestLocalLockerHandsOverOnRelease(t *testing.T) {
	locker := NewLocalLocker(2 * time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "conv-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	acquired := make(chan error, 1)
	go func() {
		r, err := locker.Acquire(ctx, "conv-1")
		if err == nil {
			r()
		}
		acquired <- err
	}()

	time.Sleep(20 * time.Millisecond)
	release()

	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("waiter failed: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker(time.Second)
	release, _ := locker.Acquire(context.Background(), "k")
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := locker.Acquire(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
