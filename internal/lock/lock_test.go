package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if _, exists := f.values[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestTryLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	l := New(fake, "chat-routing:lock:")

	release, ok, err := l.TryLock(ctx, "sweep", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	if fake.ttls["chat-routing:lock:sweep"] != time.Minute {
		t.Fatalf("ttl not applied: %v", fake.ttls)
	}

	if _, ok, err := l.TryLock(ctx, "sweep", time.Minute); err != nil || ok {
		t.Fatalf("second lock must fail: ok=%v err=%v", ok, err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := l.TryLock(ctx, "sweep", time.Minute); !ok {
		t.Fatal("lock should be free after release")
	}
}

func TestReleaseAfterTakeover(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	l := New(fake, "")

	release, _, _ := l.TryLock(ctx, "sweep", time.Second)
	// The lease expired and another instance took the key.
	fake.values["sweep"] = "someone-else"

	if err := release(ctx); !errors.Is(err, ErrNotHeld) {
		t.Fatalf("expected ErrNotHeld, got %v", err)
	}
	if fake.values["sweep"] != "someone-else" {
		t.Fatal("release must not delete a lock held by another token")
	}
}

func TestTryLockPropagatesRedisErrors(t *testing.T) {
	l := New(erroringRedis{}, "")
	if _, ok, err := l.TryLock(context.Background(), "sweep", time.Second); err == nil || ok {
		t.Fatalf("expected error, got ok=%v err=%v", ok, err)
	}
}

type erroringRedis struct{}

func (erroringRedis) SetNX(context.Context, string, interface{}, time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(false, errors.New("connection refused"))
}

func (erroringRedis) Eval(context.Context, string, []string, ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("connection refused"))
}
