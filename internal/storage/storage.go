// Package storage defines the key/value store that backs the result cache.
package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("storage: key not found")

// Store is a byte-valued key/value store with per-entry expiry.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A ttl of zero or less means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// Purger is implemented by stores that must remove expired entries
// themselves rather than relying on the backend.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Pinger is implemented by stores that can report whether their backend is
// reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s if it is a Pinger. Other stores are always ready.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// RunPurger calls p.PurgeExpired every interval until ctx is done.
func RunPurger(ctx context.Context, p Purger, interval time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.WarnContext(ctx, "failed to purge expired cache entries", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				logger.DebugContext(ctx, "purged expired cache entries", slog.Int64("count", n))
			}
		}
	}
}

// StartPurger runs RunPurger on its own goroutine. A non-positive interval
// starts nothing. The returned stop func blocks until the loop has exited
// and is safe to call more than once.
func StartPurger(p Purger, interval time.Duration, logger *slog.Logger) (stop func()) {
	if interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunPurger(ctx, p, interval, logger)
	}()

	return func() {
		cancel()
		<-done
	}
}
