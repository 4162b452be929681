package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// DefaultSweepInterval is how often expired entries are swept.
const DefaultSweepInterval = time.Minute

// Option configures a Store.
type Option func(*Store)

// WithSweepInterval sets how often expired entries are removed. A
// non-positive interval leaves eviction to reads.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		s.sweepEvery = d
	}
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is an in-memory implementation of storage.Store
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time

	sweepEvery time.Duration
	logger     *slog.Logger
	stopSweep  func()
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Purger = (*Store)(nil)
)

// New creates a new in-memory store. Expired entries are swept every
// DefaultSweepInterval until Close.
func New(opts ...Option) *Store {
	s := &Store{
		entries:    make(map[string]entry),
		now:        time.Now,
		sweepEvery: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stopSweep = storage.StartPurger(s, s.sweepEvery, s.logger)
	return s
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return nil, storage.ErrNotFound
	}
	if e.expired(s.now()) {
		s.mu.Lock()
		if cur, ok := s.entries[key]; ok && cur.expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, storage.ErrNotFound
	}

	return append([]byte(nil), e.value...), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// PurgeExpired removes every expired entry and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the sweeper. Entries stay readable.
func (s *Store) Close() error {
	s.stopSweep()
	return nil
}
