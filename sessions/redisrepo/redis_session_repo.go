// Package redisrepo provides a Redis-backed session repository. TTLs are set
// from each session's ExpiresAt, so DeleteExpired is only needed to prune the
// user index eagerly; expired session records vanish on their own.
package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/sessions"
)

var _ sessions.Repo = (*RedisSessionRepo)(nil)

const (
	sessionKeyPrefix = "greenfolio:session:id:"
	userKeyPrefix    = "greenfolio:session:user:"
)

type RedisSessionRepo struct {
	client  *redis.Client
	nowTime func() time.Time
}

type Option func(*RedisSessionRepo)

func WithNowTime(now func() time.Time) Option {
	return func(sr *RedisSessionRepo) {
		sr.nowTime = now
	}
}

func New(client *redis.Client, options ...Option) *RedisSessionRepo {
	sr := &RedisSessionRepo{client: client, nowTime: time.Now}
	for _, option := range options {
		option(sr)
	}
	return sr
}

func (sr *RedisSessionRepo) Upsert(sessionID string, session *sessions.Session) error {
	ctx := context.Background()

	session.ID = sessionID
	ttl := session.ExpiresAt.Sub(sr.nowTime())
	if ttl <= 0 {
		return errors.ErrSessionExpired
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := sr.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+sessionID, payload, ttl)
	pipe.Set(ctx, userKeyPrefix+session.UserID, sessionID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (sr *RedisSessionRepo) Get(sessionID string) (*sessions.Session, error) {
	ctx := context.Background()

	payload, err := sr.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session sessions.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (sr *RedisSessionRepo) GetByUserID(userID string) (*sessions.Session, error) {
	ctx := context.Background()

	sessionID, err := sr.client.Get(ctx, userKeyPrefix+userID).Result()
	if err == redis.Nil {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session by user: %w", err)
	}
	return sr.Get(sessionID)
}

func (sr *RedisSessionRepo) Delete(sessionID string) error {
	ctx := context.Background()

	session, err := sr.Get(sessionID)
	if err != nil {
		return errors.ErrSessionNotFound
	}

	pipe := sr.client.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+sessionID)
	pipe.Del(ctx, userKeyPrefix+session.UserID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired scans the user index and drops entries whose session record
// has already expired. Session records themselves expire via TTL.
func (sr *RedisSessionRepo) DeleteExpired(before time.Time) error {
	ctx := context.Background()

	iter := sr.client.Scan(ctx, 0, userKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		sessionID, err := sr.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("scan session index: %w", err)
		}

		session, err := sr.Get(sessionID)
		if err == errors.ErrSessionNotFound || (err == nil && session.ExpiresAt.Before(before)) {
			pipe := sr.client.TxPipeline()
			pipe.Del(ctx, sessionKeyPrefix+sessionID)
			pipe.Del(ctx, iter.Val())
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("delete expired session: %w", err)
			}
		}
	}
	return iter.Err()
}
