// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/albumin/internal/platform/constants"
	"github.com/taibuivan/albumin/pkg/slice"
)

// AlbumCache stores album metadata keyed by provider id.
//
// Implementations must tolerate concurrent use. Misses are not errors.
type AlbumCache interface {
	GetAlbums(ctx context.Context, ids []string) (map[string]Album, error)
	SetAlbums(ctx context.Context, albums []Album) error
}

// NopCache never stores anything.
type NopCache struct{}

// GetAlbums always misses.
func (NopCache) GetAlbums(context.Context, []string) (map[string]Album, error) {
	return map[string]Album{}, nil
}

// SetAlbums discards the albums.
func (NopCache) SetAlbums(context.Context, []Album) error { return nil }

// RedisAlbumCache keeps albums as JSON strings with a fixed TTL.
type RedisAlbumCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisAlbumCache creates a cache over client. A non-positive ttl disables caching writes.
func NewRedisAlbumCache(client redis.Cmdable, ttl time.Duration) *RedisAlbumCache {
	return &RedisAlbumCache{client: client, ttl: ttl}
}

func albumKey(id string) string {
	return constants.RedisPrefixCatalogAlbum + id
}

/*
GetAlbums reads all ids in one round-trip.

Returns:
  - map[string]Album: the hits; absent ids were not cached
  - error: connectivity errors
*/
func (cache *RedisAlbumCache) GetAlbums(ctx context.Context, ids []string) (map[string]Album, error) {
	found := make(map[string]Album, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	keys := slice.Map(ids, albumKey)

	values, err := cache.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return found, fmt.Errorf("redis_album_cache_get_failed: %w", err)
	}

	for index, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var album Album
		// A corrupt entry is a miss; the next fetch overwrites it.
		if json.Unmarshal([]byte(raw), &album) == nil && album.ID == ids[index] {
			found[album.ID] = album
		}
	}
	return found, nil
}

// SetAlbums writes the albums in a single pipeline.
func (cache *RedisAlbumCache) SetAlbums(ctx context.Context, albums []Album) error {
	if cache.ttl <= 0 || len(albums) == 0 {
		return nil
	}

	pipe := cache.client.Pipeline()
	for _, album := range albums {
		encoded, err := json.Marshal(album)
		if err != nil {
			return fmt.Errorf("redis_album_cache_encode_failed: %w", err)
		}
		pipe.Set(ctx, albumKey(album.ID), encoded, cache.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis_album_cache_set_failed: %w", err)
	}
	return nil
}
