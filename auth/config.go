package auth

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/MailerSuite/Final-sub009/config"
	"github.com/MailerSuite/Final-sub009/errors"
)

// FromConfig builds the token chain described by cfg: the durable store
// (Redis if an address is set, else the token file) ahead of a session
// store seeded with cfg.Token. The returned close function releases any
// connection the chain holds.
func FromConfig(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (Store, func() error, error) {
	stores := make([]Store, 0, 2)
	closeFn := func() error { return nil }

	switch {
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, errors.WrapTransient(err, "auth", "FromConfig", "ping redis at "+cfg.RedisAddr)
		}
		stores = append(stores, NewRedisStore(client, cfg.RedisPrefix, cfg.RedisTTL.Std()))
		closeFn = client.Close
	case cfg.TokenFile != "":
		stores = append(stores, NewFileStore(cfg.TokenFile, logger))
	}

	stores = append(stores, NewMemoryStore(cfg.Token))
	return Chain(stores...), closeFn, nil
}
