// Package storetest holds behavioural tests shared by every storage.Store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage"
)

// Run exercises the storage.Store contract against stores built by
// newStore. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("SetGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Set(ctx, "k", []byte(`{"decision":"approved"}`), time.Hour); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := s.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got) != `{"decision":"approved"}` {
			t.Errorf("Get() = %q", got)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_ = s.Set(ctx, "k", []byte("one"), time.Hour)
		if err := s.Set(ctx, "k", []byte("two"), time.Hour); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := s.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got) != "two" {
			t.Errorf("Get() = %q, want two", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_ = s.Set(ctx, "k", []byte("v"), time.Hour)
		if err := s.Delete(ctx, "k"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := s.Get(ctx, "k"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "k"); err != nil {
			t.Errorf("Delete() of absent key error = %v", err)
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Set(ctx, "short", []byte("v"), 50*time.Millisecond); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := s.Set(ctx, "forever", []byte("v"), 0); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		time.Sleep(150 * time.Millisecond)

		if _, err := s.Get(ctx, "short"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get(short) error = %v, want ErrNotFound", err)
		}
		if _, err := s.Get(ctx, "forever"); err != nil {
			t.Errorf("Get(forever) error = %v", err)
		}
	})

	t.Run("Concurrent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("k%d", i%4)
				_ = s.Set(ctx, key, []byte("v"), time.Hour)
				_, _ = s.Get(ctx, key)
			}(i)
		}
		wg.Wait()

		for i := 0; i < 4; i++ {
			if _, err := s.Get(ctx, fmt.Sprintf("k%d", i)); err != nil {
				t.Errorf("Get(k%d) error = %v", i, err)
			}
		}
	})
}

// RunExpiredRemoval checks that expired entries leave the store without
// being read. newStore must return a store that sweeps within a few
// milliseconds; size reports how many entries the backend holds.
func RunExpiredRemoval(t *testing.T, newStore func(t *testing.T) storage.Store, size func(t *testing.T, s storage.Store) int) {
	t.Helper()

	t.Run("ExpiredRemovedWithoutRead", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const short = 200
		for i := 0; i < short; i++ {
			if err := s.Set(ctx, fmt.Sprintf("short-%d", i), []byte("v"), time.Millisecond); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
		}
		if err := s.Set(ctx, "forever", []byte("v"), 0); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		deadline := time.Now().Add(5 * time.Second)
		n := size(t, s)
		for n > 1 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
			n = size(t, s)
		}
		if n != 1 {
			t.Fatalf("size = %d after expiry, want 1 (expired entries retained)", n)
		}

		if _, err := s.Get(ctx, "forever"); err != nil {
			t.Errorf("Get(forever) error = %v", err)
		}
	})
}
