package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "classify:"
	DefaultTTL    = 24 * time.Hour
)

type commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// ResultCache memoizes categories by image digest.
type ResultCache struct {
	client commander
	closer func() error
	prefix string
	ttl    time.Duration
}

type Options struct {
	Prefix string
	TTL    time.Duration
}

func New(url string, options Options) (*ResultCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newResultCache(client, client.Close, options), nil
}

func newResultCache(client commander, closer func() error, options Options) *ResultCache {
	if options.Prefix == "" {
		options.Prefix = DefaultPrefix
	}
	if options.TTL <= 0 {
		options.TTL = DefaultTTL
	}
	return &ResultCache{
		client: client,
		closer: closer,
		prefix: options.Prefix,
		ttl:    options.TTL,
	}
}

func (c *ResultCache) Get(ctx context.Context, digest string) (string, bool, error) {
	category, err := c.client.Get(ctx, c.prefix+digest).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return category, true, nil
}

func (c *ResultCache) Set(ctx context.Context, digest, category string) error {
	if err := c.client.Set(ctx, c.prefix+digest, category, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *ResultCache) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
