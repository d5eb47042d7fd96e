package services

import (
	"context"
	"time"

	"github.com/postgen/postgen/utils"
)

// ListCache stores serialized post lists under keys that embed a generation.
// Every mutation bumps the generation, so a list computed before a mutation
// can only ever be written under a key that is no longer read.
type ListCache interface {
	Generation(ctx context.Context) (int64, bool)
	Bump(ctx context.Context)
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, v interface{}, ttl time.Duration)
}

const postsGenerationKey = "cache:posts:gen"

type redisListCache struct{}

func (redisListCache) Generation(ctx context.Context) (int64, bool) {
	return utils.CacheGeneration(ctx, postsGenerationKey)
}

func (redisListCache) Bump(ctx context.Context) {
	utils.BumpGeneration(ctx, postsGenerationKey)
}

func (redisListCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return utils.CacheGetBytes(ctx, key)
}

func (redisListCache) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	utils.CacheSetJSON(ctx, key, v, ttl)
}
