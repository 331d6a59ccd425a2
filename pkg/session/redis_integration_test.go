//go:build integration

package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store := NewRedisStore(redisClient(t))

	sess := testSession(t, time.Hour)
	if err := store.Set(ctx, sess); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, sess.ID)
	if err != nil || got == nil || got.Handle() != "olirice" {
		t.Fatalf("Get() = %+v, %v", got, err)
	}
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Get(ctx, sess.ID); got != nil {
		t.Error("session survived Delete")
	}
}

func TestRedisStateStore(t *testing.T) {
	ctx := context.Background()
	s := NewRedisStateStore(redisClient(t))

	state, err := s.Generate(ctx, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Validate(ctx, state); !ok {
		t.Error("Validate() rejected a fresh state")
	}
	if ok, _ := s.Validate(ctx, state); ok {
		t.Error("Validate() accepted a state twice")
	}
}
