package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	commandPoolSize = 20
	commandTimeout  = 3 * time.Second
)

// RedisClients keeps command traffic (quiz sessions, publishes, the
// revalidation queue) apart from the long-lived subscription connection used
// by the websocket hub.
type RedisClients struct {
	Cache  *redis.Client
	PubSub *redis.Client
}

// NewRedisClients connects both clients. Each revalidation worker parks a
// connection in BLPOP, so the command pool grows with the worker count.
func NewRedisClients(redisURL string, queueWorkers int) (*RedisClients, error) {
	base, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	cacheOpt, pubsubOpt := clientOptions(base, queueWorkers)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cacheClient := redis.NewClient(cacheOpt)
	if err := cacheClient.Ping(ctx).Err(); err != nil {
		cacheClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (cache): %w", err)
	}

	pubsubClient := redis.NewClient(pubsubOpt)
	if err := pubsubClient.Ping(ctx).Err(); err != nil {
		cacheClient.Close()
		pubsubClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (pubsub): %w", err)
	}

	return &RedisClients{
		Cache:  cacheClient,
		PubSub: pubsubClient,
	}, nil
}

// clientOptions derives the two clients' settings from the parsed URL.
// Blocking pops get their own deadline from go-redis, so the command client
// keeps short timeouts. The subscription client holds one connection open
// indefinitely.
func clientOptions(base *redis.Options, queueWorkers int) (cache, pubsub *redis.Options) {
	c := *base
	c.PoolSize = commandPoolSize + max(queueWorkers, 0)
	c.MinIdleConns = 2
	c.ReadTimeout = commandTimeout
	c.WriteTimeout = commandTimeout

	p := *base
	p.PoolSize = 2
	p.MinIdleConns = 0
	p.ReadTimeout = -1
	p.ConnMaxIdleTime = -1

	return &c, &p
}

func (r *RedisClients) Close() {
	r.Cache.Close()
	r.PubSub.Close()
}
