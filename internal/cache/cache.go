// Package cache memoizes moderation results by content fingerprint.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage"
)

// DefaultTTL is how long results stay cached unless configured otherwise.
const DefaultTTL = time.Hour

const keyPrefix = "moderation:"

// Key identifies a cached result. Results are namespaced by provider so a
// verdict from one model never answers a request routed to the other.
type Key struct {
	Provider    domain.Provider
	ContentType domain.ContentType
	Content     string
}

// Fingerprint returns the store key for k.
func (k Key) Fingerprint() string {
	sum := sha256.Sum256([]byte(string(k.Provider) + ":" + string(k.ContentType) + ":" + k.Content))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Saves   int64   `json:"saves"`
	Errors  int64   `json:"errors"`
	Total   int64   `json:"total"`
	HitRate float64 `json:"hitRate"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// Cache is a best-effort result cache: store failures are logged and
// reported as misses, never returned.
type Cache struct {
	store  storage.Store
	ttl    time.Duration
	logger *slog.Logger

	hits     atomic.Int64
	misses   atomic.Int64
	saves    atomic.Int64
	failures atomic.Int64
}

// New creates a Cache over store.
func New(store storage.Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached result for k.
func (c *Cache) Get(ctx context.Context, k Key) (*domain.ModerationResult, bool) {
	raw, err := c.store.Get(ctx, k.Fingerprint())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.failures.Add(1)
			c.logger.WarnContext(ctx, "cache read failed", slog.String("error", err.Error()))
		}
		c.misses.Add(1)
		return nil, false
	}

	var result domain.ModerationResult
	if err := json.Unmarshal(raw, &result); err != nil || result.Decision == "" {
		c.failures.Add(1)
		c.misses.Add(1)
		c.logger.WarnContext(ctx, "discarding malformed cache entry", slog.String("key", k.Fingerprint()))
		return nil, false
	}

	c.hits.Add(1)
	c.logger.DebugContext(ctx, "cache hit", slog.String("key", k.Fingerprint()))
	return &result, true
}

// Set stores result under k.
func (c *Cache) Set(ctx context.Context, k Key, result *domain.ModerationResult) {
	if result == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		c.failures.Add(1)
		c.logger.WarnContext(ctx, "cache encode failed", slog.String("error", err.Error()))
		return
	}
	if err := c.store.Set(ctx, k.Fingerprint(), raw, c.ttl); err != nil {
		c.failures.Add(1)
		c.logger.WarnContext(ctx, "cache write failed", slog.String("error", err.Error()))
		return
	}
	c.saves.Add(1)
}

// Invalidate removes the entry for k.
func (c *Cache) Invalidate(ctx context.Context, k Key) {
	if err := c.store.Delete(ctx, k.Fingerprint()); err != nil {
		c.failures.Add(1)
		c.logger.WarnContext(ctx, "cache invalidate failed", slog.String("error", err.Error()))
	}
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	s := Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Saves:  c.saves.Load(),
		Errors: c.failures.Load(),
	}
	s.Total = s.Hits + s.Misses
	if s.Total > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Total)
	}
	return s
}
