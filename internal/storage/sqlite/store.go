package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage"
)

// DefaultPurgeInterval is how often expired rows are deleted.
const DefaultPurgeInterval = 5 * time.Minute

// Option configures a Store.
type Option func(*Store)

// WithPurgeInterval sets how often expired rows are deleted. A non-positive
// interval leaves eviction to reads and explicit PurgeExpired calls.
func WithPurgeInterval(d time.Duration) Option {
	return func(s *Store) {
		s.purgeEvery = d
	}
}

// WithLogger sets the logger used by the purge loop.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is a SQLite implementation of storage.Store
type Store struct {
	db  *sql.DB
	now func() time.Time

	purgeEvery time.Duration
	logger     *slog.Logger
	stopPurge  func()
	closeOnce  sync.Once
	closeErr   error
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Purger = (*Store)(nil)
	_ storage.Pinger = (*Store)(nil)
)

// New opens or creates the database at dbPath. Expired rows are purged
// every DefaultPurgeInterval until Close.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers; SQLite allows only one anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, now: time.Now, purgeEvery: DefaultPurgeInterval}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.stopPurge = storage.StartPurger(store, store.purgeEvery, store.logger)
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries(expires_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value for key. Expired rows are deleted on read.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value     []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if expiresAt != 0 && s.now().UnixNano() >= expiresAt {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE key = ? AND expires_at = ?`, key, expiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to evict expired entry: %w", err)
		}
		return nil, storage.ErrNotFound
	}

	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	var expiresAt int64
	if ttl > 0 {
		expiresAt = now.Add(ttl).UnixNano()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`, key, value, expiresAt, now)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// PurgeExpired removes every expired row and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at != 0 AND expires_at <= ?`, s.now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}
	return res.RowsAffected()
}

// Ping runs a trivial query to confirm the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}
	return nil
}

// Close stops the purge loop and closes the database.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.stopPurge()
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
