// Package redis stores cache entries in Redis with native key expiry.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage"
)

// Store is a Redis implementation of storage.Store.
type Store struct {
	client *redis.Client
	prefix string
	owned  bool
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Pinger = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key written by the store.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// Connect dials Redis from a redis:// URL or a host:port address and
// verifies the connection with PING.
func Connect(ctx context.Context, redisURL string, opts ...Option) (*Store, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	s := New(client, opts...)
	s.owned = true
	return s, nil
}

// New wraps an existing client. Close does not close a client passed here.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

// Set stores value with ttl; zero means the key never expires.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.prefix+key, value, ttl).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Ping checks the server with PING.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
