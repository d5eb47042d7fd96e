package utils

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheGetBytes returns cached bytes for a key. Always a miss when Redis is disabled.
func CacheGetBytes(ctx context.Context, key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		Sugar.Debugf("cache get miss key=%s err=%v", key, err)
		return nil, false
	}
	return b, true
}

// CacheSetJSON marshals v and stores it under key for ttl.
func CacheSetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	rc := GetRedis()
	if rc == nil || ttl <= 0 {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// CacheGeneration returns the current generation counter stored at key.
// ok is false when Redis is disabled or unreachable; callers must not cache then.
func CacheGeneration(ctx context.Context, key string) (int64, bool) {
	rc := GetRedis()
	if rc == nil {
		return 0, false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	gen, err := rc.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		Sugar.Warnf("cache generation read failed key=%s err=%v", key, err)
		return 0, false
	}
	return gen, true
}

// BumpGeneration advances the counter at key so entries written under older
// generations are never read again. They expire on their own TTL.
func BumpGeneration(ctx context.Context, key string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Incr(ctx, key).Err(); err != nil {
		Sugar.Warnf("cache generation bump failed key=%s err=%v", key, err)
	}
}
