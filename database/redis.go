package database

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"link-reward-system/models"

	"github.com/redis/go-redis/v9"
)

// LinkCache fronts the resolver's hot path with a short-TTL redis
// cache. A nil *LinkCache is valid and means caching is disabled; every
// method degrades to a miss, so redis being down never breaks resolves.
type LinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLinkCache connects to redis; returns nil (cache disabled) when the
// address is empty or the server is unreachable.
func NewLinkCache(addr, password string, ttl time.Duration) *LinkCache {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Printf("⚠️  Failed to connect to Redis at %s: %v. Resolver caching disabled.", addr, err)
		return nil
	}
	log.Println("✅ Connected to Redis, resolver caching enabled")
	return &LinkCache{client: client, ttl: ttl}
}

func cacheKey(code string) string {
	return "shortlink:" + code
}

func (c *LinkCache) Get(ctx context.Context, code string) *models.ShortLink {
	if c == nil {
		return nil
	}
	data, err := c.client.Get(ctx, cacheKey(code)).Bytes()
	if err != nil {
		return nil
	}
	var link models.ShortLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil
	}
	return &link
}

func (c *LinkCache) Set(ctx context.Context, link *models.ShortLink) {
	if c == nil {
		return
	}
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(link.Code), data, c.ttl).Err(); err != nil {
		log.Printf("⚠️  Failed to cache short link %s: %v", link.Code, err)
	}
}

// Invalidate drops a cached link, used when a link is deactivated so
// the stale active copy cannot outlive the TTL.
func (c *LinkCache) Invalidate(ctx context.Context, code string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKey(code)).Err(); err != nil {
		log.Printf("⚠️  Failed to invalidate cached short link %s: %v", code, err)
	}
}
