// Package redisstore provides a Redis-backed CSRF record store. Records
// expire server-side via TTL; the constant-time secret comparison stays in
// the csrf service, never in storage code.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/greenfolio/auth-core/csrf"
	"github.com/greenfolio/auth-core/internal/errors"
)

var _ csrf.Store = (*RedisStore)(nil)

const keyPrefix = "greenfolio:csrf:"

type RedisStore struct {
	client  *redis.Client
	nowTime func() time.Time
}

type Option func(*RedisStore)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(rs *RedisStore) { rs.nowTime = nowFunc }
}

func New(client *redis.Client, options ...Option) *RedisStore {
	rs := &RedisStore{client: client, nowTime: time.Now}
	for _, opt := range options {
		opt(rs)
	}
	return rs
}

func (rs *RedisStore) Upsert(ctx context.Context, record *csrf.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal csrf record: %w", err)
	}

	ttl := record.ExpiresAt.Sub(rs.nowTime())
	if ttl <= 0 {
		ttl = time.Second // let redis expire it almost immediately
	}
	if err := rs.client.Set(ctx, keyPrefix+record.UserID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store csrf record: %w", err)
	}
	return nil
}

func (rs *RedisStore) Get(ctx context.Context, userID string) (*csrf.Record, error) {
	payload, err := rs.client.Get(ctx, keyPrefix+userID).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get csrf record: %w", err)
	}

	var record csrf.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal csrf record: %w", err)
	}
	return &record, nil
}

func (rs *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := rs.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("delete csrf record: %w", err)
	}
	return nil
}
