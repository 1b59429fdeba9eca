package lib

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var redisClient *redis.Client

// GetRedisClient returns the shared client, connecting lazily from url.
// An empty url leaves redis disabled and returns nil.
func GetRedisClient(url string) *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		Logger().Error("[redis] invalid connection string", zap.Error(err))
		return nil
	}
	redisClient = redis.NewClient(opt)
	return redisClient
}

// NewRedisClient replaces the shared client, used by tests.
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}

func PingRedis(ctx context.Context, c *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.Ping(ctx).Err()
}
