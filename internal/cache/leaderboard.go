// Package cache holds the Redis-backed read caches. All operations are
// nil-safe so the server can run without a Redis instance.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/devcircle/devcircle-server/internal/models"
)

const leaderboardTTL = 60 * time.Second

// LeaderboardCache caches per-college leaderboards. Karma balances change on
// every lifecycle transition, so entries carry a short TTL instead of being
// invalidated explicitly.
type LeaderboardCache struct {
	client *redis.Client
}

func NewLeaderboardCache(client *redis.Client) *LeaderboardCache {
	if client == nil {
		return nil
	}
	return &LeaderboardCache{client: client}
}

func leaderboardKey(college string) string {
	return fmt.Sprintf("leaderboard:%s", college)
}

// Get returns the cached leaderboard for college, if present.
func (c *LeaderboardCache) Get(ctx context.Context, college string) ([]models.User, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, leaderboardKey(college)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).Debug("Leaderboard cache read failed")
		}
		return nil, false
	}

	var users []models.User
	if err := json.Unmarshal(data, &users); err != nil {
		log.WithError(err).Debug("Leaderboard cache entry corrupt")
		return nil, false
	}

	return users, true
}

// Set stores the leaderboard for college. Failures are logged and ignored.
func (c *LeaderboardCache) Set(ctx context.Context, college string, users []models.User) {
	if c == nil {
		return
	}

	data, err := json.Marshal(users)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, leaderboardKey(college), data, leaderboardTTL).Err(); err != nil {
		log.WithError(err).Debug("Leaderboard cache write failed")
	}
}
