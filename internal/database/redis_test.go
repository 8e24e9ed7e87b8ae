package database

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestClientOptions(t *testing.T) {
	base, err := redis.ParseURL("redis://:secret@localhost:6379/2")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	cache, pubsub := clientOptions(base, 4)

	if cache.PoolSize != commandPoolSize+4 {
		t.Fatalf("expected pool size %d, got %d", commandPoolSize+4, cache.PoolSize)
	}
	if cache.ReadTimeout != 3*time.Second {
		t.Fatalf("expected 3s read timeout, got %v", cache.ReadTimeout)
	}
	if pubsub.ReadTimeout != -1 || pubsub.ConnMaxIdleTime != -1 {
		t.Fatalf("expected subscription client without timeouts, got read=%v idle=%v", pubsub.ReadTimeout, pubsub.ConnMaxIdleTime)
	}
	if pubsub.PoolSize != 2 {
		t.Fatalf("expected subscription pool of 2, got %d", pubsub.PoolSize)
	}
	for _, opt := range []*redis.Options{cache, pubsub} {
		if opt.Addr != "localhost:6379" || opt.DB != 2 || opt.Password != "secret" {
			t.Fatalf("expected URL settings to carry over, got %s db=%d", opt.Addr, opt.DB)
		}
	}
	if base.PoolSize == cache.PoolSize {
		t.Fatal("expected the parsed options to be left untouched")
	}
}

func TestClientOptionsNegativeWorkers(t *testing.T) {
	cache, _ := clientOptions(&redis.Options{Addr: "localhost:6379"}, -3)
	if cache.PoolSize != commandPoolSize {
		t.Fatalf("expected pool size %d, got %d", commandPoolSize, cache.PoolSize)
	}
}
