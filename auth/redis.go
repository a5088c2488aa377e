package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MailerSuite/Final-sub009/errors"
)

// RedisStore keeps the token under "<prefix>:token", optionally expiring it.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a durable store. ttl <= 0 keeps the token until Clear.
func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	normalized := strings.TrimSpace(prefix)
	if normalized == "" {
		normalized = "mailstream:auth"
	}
	return &RedisStore{
		client: client,
		prefix: normalized,
		ttl:    ttl,
	}
}

func (s *RedisStore) Token(ctx context.Context) (string, bool, error) {
	token, err := s.client.Get(ctx, s.key()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, errors.WrapTransient(err, "auth", "RedisStore.Token", "redis get")
	}
	return token, token != "", nil
}

func (s *RedisStore) SetToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "auth", "RedisStore.SetToken", "token is required")
	}
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(), token, ttl).Err(); err != nil {
		return errors.WrapTransient(err, "auth", "RedisStore.SetToken", "redis set")
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key()).Err(); err != nil {
		return errors.WrapTransient(err, "auth", "RedisStore.Clear", "redis del")
	}
	return nil
}

func (s *RedisStore) key() string {
	return s.prefix + ":token"
}
