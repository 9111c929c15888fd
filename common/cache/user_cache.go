package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sakethtadimeti/checkin-app/common/models"
)

const userKeyPrefix = "checkin:user:"

// Commands is the subset of the Redis API the user cache needs.
type Commands interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// UserCache stores user summaries as JSON strings with a TTL.
type UserCache struct {
	rdb Commands
	ttl time.Duration
}

func NewUserCache(rdb Commands, ttl time.Duration) *UserCache {
	return &UserCache{rdb: rdb, ttl: ttl}
}

func UserKey(id string) string {
	return userKeyPrefix + id
}

// GetMany returns the cached summaries among ids. Misses are absent from the map.
func (c *UserCache) GetMany(ctx context.Context, ids []string) (map[string]models.UserSummary, error) {
	found := make(map[string]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = UserKey(id)
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user cache: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var summary models.UserSummary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			continue
		}
		found[ids[i]] = summary
	}
	return found, nil
}

func (c *UserCache) SetMany(ctx context.Context, users []models.UserSummary) error {
	if len(users) == 0 {
		return nil
	}

	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, u := range users {
			data, err := json.Marshal(u)
			if err != nil {
				return fmt.Errorf("failed to marshal user summary: %w", err)
			}
			pipe.Set(ctx, UserKey(u.ID), data, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write user cache: %w", err)
	}
	return nil
}

func (c *UserCache) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = UserKey(id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to evict user cache: %w", err)
	}
	return nil
}
