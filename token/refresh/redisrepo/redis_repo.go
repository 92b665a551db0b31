// Package redisrepo provides a Redis-backed refresh token repository.
// Records carry a TTL equal to the refresh token lifetime, so expired
// tokens vanish without a reaper. A secondary user-keyed index supports the
// single-token-per-user replacement rule.
package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/token/refresh"
)

var _ refresh.Repo = (*RedisRefreshTokenRepo)(nil)

const (
	tokenKeyPrefix = "greenfolio:refresh:token:"
	userKeyPrefix  = "greenfolio:refresh:user:"
)

type RedisRefreshTokenRepo struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *RedisRefreshTokenRepo {
	return &RedisRefreshTokenRepo{client: client, ttl: ttl}
}

func (rr *RedisRefreshTokenRepo) Upsert(refreshToken *refresh.StoredRefreshToken) error {
	ctx := context.Background()

	payload, err := json.Marshal(refreshToken)
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}

	pipe := rr.client.TxPipeline()
	pipe.Set(ctx, tokenKeyPrefix+refreshToken.Token, payload, rr.ttl)
	pipe.Set(ctx, userKeyPrefix+refreshToken.UserID, refreshToken.Token, rr.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (rr *RedisRefreshTokenRepo) Delete(token string) error {
	ctx := context.Background()

	stored, err := rr.Get(token)
	if err != nil {
		// Deleting an already-absent token is a no-op
		return nil
	}

	pipe := rr.client.TxPipeline()
	pipe.Del(ctx, tokenKeyPrefix+token)
	pipe.Del(ctx, userKeyPrefix+stored.UserID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (rr *RedisRefreshTokenRepo) Get(token string) (*refresh.StoredRefreshToken, error) {
	ctx := context.Background()

	payload, err := rr.client.Get(ctx, tokenKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}

	var stored refresh.StoredRefreshToken
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal refresh token: %w", err)
	}
	return &stored, nil
}

func (rr *RedisRefreshTokenRepo) GetByUserID(userID string) (*refresh.StoredRefreshToken, error) {
	ctx := context.Background()

	token, err := rr.client.Get(ctx, userKeyPrefix+userID).Result()
	if err == redis.Nil {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get refresh token by user: %w", err)
	}
	return rr.Get(token)
}
