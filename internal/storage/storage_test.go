package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(ctx context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestStartPurger_RunsUntilStopped(t *testing.T) {
	p := &countingPurger{}
	stop := StartPurger(p, 5*time.Millisecond, nil)

	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	stop()
	stop()

	after := p.calls.Load()
	if after < 3 {
		t.Fatalf("PurgeExpired calls = %d, want at least 3", after)
	}
	time.Sleep(20 * time.Millisecond)
	if got := p.calls.Load(); got != after {
		t.Errorf("PurgeExpired called %d times after stop", got-after)
	}
}

func TestStartPurger_KeepsRunningAfterError(t *testing.T) {
	p := &countingPurger{err: errors.New("disk full")}
	stop := StartPurger(p, 5*time.Millisecond, nil)
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := p.calls.Load(); got < 2 {
		t.Errorf("PurgeExpired calls = %d, want retries after an error", got)
	}
}

func TestStartPurger_DisabledInterval(t *testing.T) {
	p := &countingPurger{}
	stop := StartPurger(p, 0, nil)
	time.Sleep(20 * time.Millisecond)
	stop()
	if got := p.calls.Load(); got != 0 {
		t.Errorf("PurgeExpired calls = %d, want 0", got)
	}
}

type pingStore struct {
	Store
	err error
}

func (s pingStore) Ping(ctx context.Context) error { return s.err }

func TestPing(t *testing.T) {
	down := errors.New("connection refused")
	if err := Ping(context.Background(), pingStore{err: down}); !errors.Is(err, down) {
		t.Errorf("Ping() error = %v, want %v", err, down)
	}
	if err := Ping(context.Background(), pingStore{}); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	var plain Store = struct{ Store }{}
	if err := Ping(context.Background(), plain); err != nil {
		t.Errorf("Ping() on a store without Ping = %v, want nil", err)
	}
}
