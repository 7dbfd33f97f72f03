package github

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 10 * time.Minute

	redisPrefix = "botdeploy:fork:"
)

// Cache memoizes fork eligibility per username.
type Cache interface {
	// Get returns the cached verdict, and whether there was one.
	Get(ctx context.Context, username string) (eligible, found bool, err error)
	Set(ctx context.Context, username string, eligible bool) error
}

func cacheKey(username string) string {
	return strings.ToLower(username)
}

type memoryCache struct {
	entries *expirable.LRU[string, bool]
}

var _ Cache = &memoryCache{}

// NewMemoryCache returns a process local cache holding at most size entries for ttl each.
func NewMemoryCache(size int, ttl time.Duration) Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &memoryCache{
		entries: expirable.NewLRU[string, bool](size, nil, ttl),
	}
}

func (c *memoryCache) Get(_ context.Context, username string) (bool, bool, error) {
	eligible, found := c.entries.Get(cacheKey(username))
	return eligible, found, nil
}

func (c *memoryCache) Set(_ context.Context, username string, eligible bool) error {
	c.entries.Add(cacheKey(username), eligible)
	return nil
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Cache = &redisCache{}

// NewRedisCache shares verdicts between replicas. Size is bounded by the server's eviction policy.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (Cache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &redisCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func (c *redisCache) Get(ctx context.Context, username string) (bool, bool, error) {
	value, err := c.client.Get(ctx, redisPrefix+cacheKey(username)).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return value == "1", true, nil
}

func (c *redisCache) Set(ctx context.Context, username string, eligible bool) error {
	value := "0"
	if eligible {
		value = "1"
	}
	return c.client.Set(ctx, redisPrefix+cacheKey(username), value, c.ttl).Err()
}
