package config

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SetupRedis creates the Redis client used for caching. Returns nil when no
// address is configured; callers treat a nil client as "cache disabled".
func SetupRedis(cfg *Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}
