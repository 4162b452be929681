package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage/storetest"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "cache.db"), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		return newTestStore(t)
	})
}

func rowCount(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func TestSQLiteStore_PurgesExpiredInBackground(t *testing.T) {
	storetest.RunExpiredRemoval(t,
		func(t *testing.T) storage.Store {
			return newTestStore(t, WithPurgeInterval(5*time.Millisecond))
		},
		func(t *testing.T, s storage.Store) int {
			return rowCount(t, s.(*Store))
		},
	)
}

func TestSQLiteStore_Ping(t *testing.T) {
	store := newTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	store.Close()
	if err := store.Ping(context.Background()); err == nil {
		t.Error("Ping() after Close: expected error")
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestSQLiteStore_PurgeExpired(t *testing.T) {
	store := newTestStore(t, WithPurgeInterval(0))
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	_ = store.Set(ctx, "a", []byte("1"), time.Minute)
	_ = store.Set(ctx, "b", []byte("2"), time.Hour)
	_ = store.Set(ctx, "c", []byte("3"), 0)

	now = now.Add(2 * time.Minute)
	n, err := store.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeExpired() = %d, want 1", n)
	}

	if _, err := store.Get(ctx, "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get(a) error = %v, want ErrNotFound", err)
	}
	for _, key := range []string{"b", "c"} {
		if _, err := store.Get(ctx, key); err != nil {
			t.Errorf("Get(%s) error = %v", key, err)
		}
	}
}

func TestSQLiteStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	first, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := first.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	first.Close()

	second, err := New(path)
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer second.Close()

	got, err := second.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get() = %q, want v", got)
	}
}
