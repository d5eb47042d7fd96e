package utils

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/postgen/postgen/config"
)

var redisClient *redis.Client

// InitRedis connects the shared Redis client. With no RedisHost configured
// Redis stays disabled and GetRedis returns nil, so callers use their in-memory fallback.
func InitRedis(cfg config.AppConfig) *redis.Client {
	if cfg.RedisHost == "" {
		redisClient = nil
		return nil
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		Sugar.Warnf("redis ping failed, continuing: %v", err)
	}
	return redisClient
}

// GetRedis returns the shared Redis client, or nil when Redis is disabled.
func GetRedis() *redis.Client {
	return redisClient
}
