package redisstore

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/vims/core/auth"
)

const keyPrefix = "vims:session:"

type store struct {
	client *redis.Client
	maxTTL time.Duration
}

var _ auth.Store = (*store)(nil)

// Connect parses url, checks the server answers and returns the client.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis URL")
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "connecting to redis")
	}
	return client, nil
}

// NewStore keeps each bundle under its own key, expiring with the bundle's tokens (at most maxTTL).
func NewStore(client *redis.Client, maxTTL time.Duration) *store {
	return &store{client: client, maxTTL: maxTTL}
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}

func (s *store) Get(ctx context.Context, sessionID string) (*auth.Bundle, error) {
	data, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	b, err := auth.DecodeBundle(data)
	if err != nil {
		return nil, s.Clear(ctx, sessionID)
	}
	return b, nil
}

func (s *store) Set(ctx context.Context, sessionID string, b auth.Bundle) error {
	data, err := auth.EncodeBundle(b)
	if err != nil {
		return err
	}
	if err = s.client.Set(ctx, key(sessionID), data, b.TTL(time.Now(), s.maxTTL)).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func (s *store) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, key(sessionID)).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}
