// Copyright (c) 2026 Albumin. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/albumin/internal/platform/apperr"
	"github.com/taibuivan/albumin/internal/platform/constants"
)

// RedisStateStore implements StateStore using Redis.
type RedisStateStore struct {
	client redis.Cmdable
}

// NewStateStore creates a new Redis-backed StateStore.
func NewStateStore(client redis.Cmdable) *RedisStateStore {
	return &RedisStateStore{client: client}
}

/*
Save stores the callback under the state key with a TTL.

Parameters:
  - context: context.Context
  - state: string
  - callback: string
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (repository *RedisStateStore) Save(context context.Context, state, callback string, ttl time.Duration) error {
	key := constants.RedisPrefixOAuthState + state

	if err := repository.client.Set(context, key, callback, ttl).Err(); err != nil {
		return fmt.Errorf("redis_oauth_state_set_failed: %w", err)
	}

	return nil
}

/*
Take reads and deletes the state in one command, so a state works once.

Returns:
  - string: Saved callback
  - error: apperr.Unauthorized or connectivity errors
*/
func (repository *RedisStateStore) Take(context context.Context, state string) (string, error) {
	key := constants.RedisPrefixOAuthState + state

	callback, err := repository.client.GetDel(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.Unauthorized("Login state is invalid or expired")
		}
		return "", fmt.Errorf("redis_oauth_state_take_failed: %w", err)
	}

	return callback, nil
}
