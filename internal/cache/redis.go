package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"shortlinks/internal/types"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "link:"

// ErrMiss is returned by Get when the code is not cached.
var ErrMiss = errors.New("cache miss")

type Cache struct {
	rdb *redis.Client
}

func ConnectRedis(ctx context.Context, url, password string) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &Cache{rdb: rdb}, nil
}

// New wraps an existing client.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Get(ctx context.Context, shortCode string) (*types.ShortLink, error) {
	raw, err := c.rdb.Get(ctx, keyPrefix+shortCode).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}

	var link types.ShortLink
	if err := json.Unmarshal(raw, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *Cache) Set(ctx context.Context, link *types.ShortLink, expiration time.Duration) error {
	raw, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyPrefix+link.ShortCode, raw, expiration).Err()
}

func (c *Cache) Delete(ctx context.Context, shortCode string) error {
	return c.rdb.Del(ctx, keyPrefix+shortCode).Err()
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
