package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKey_Fingerprint(t *testing.T) {
	base := Key{Provider: domain.ProviderOpenAI, ContentType: domain.ContentTypeText, Content: "hello"}

	fp := base.Fingerprint()
	if !strings.HasPrefix(fp, "moderation:") || len(fp) != len("moderation:")+64 {
		t.Fatalf("Fingerprint() = %q", fp)
	}
	if fp != base.Fingerprint() {
		t.Error("Fingerprint() is not stable")
	}

	variants := []Key{
		{Provider: domain.ProviderGemini, ContentType: domain.ContentTypeText, Content: "hello"},
		{Provider: domain.ProviderOpenAI, ContentType: domain.ContentTypeImage, Content: "hello"},
		{Provider: domain.ProviderOpenAI, ContentType: domain.ContentTypeText, Content: "hello!"},
	}
	for _, v := range variants {
		if v.Fingerprint() == fp {
			t.Errorf("Fingerprint(%+v) collides with %+v", v, base)
		}
	}
}

func TestCache_RoundTripAndStats(t *testing.T) {
	c := New(memory.New(), WithLogger(quietLogger()))
	ctx := context.Background()
	key := Key{Provider: domain.ProviderOpenAI, ContentType: domain.ContentTypeText, Content: "hello"}

	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("Get() on empty cache hit")
	}

	want := &domain.ModerationResult{
		Decision:       domain.DecisionApproved,
		Reasoning:      "fine",
		Classification: []string{"safe"},
		AnalysisResult: &domain.AnalysisResult{IsSafe: true, Concerns: []string{}, Severity: domain.SeverityLow},
		AIProvider:     domain.ProviderOpenAI,
	}
	c.Set(ctx, key, want)

	got, ok := c.Get(ctx, key)
	if !ok {
		t.Fatal("Get() after Set missed")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	c.Invalidate(ctx, key)
	if _, ok := c.Get(ctx, key); ok {
		t.Error("Get() after Invalidate hit")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 2 || stats.Saves != 1 || stats.Total != 3 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.HitRate < 0.33 || stats.HitRate > 0.34 {
		t.Errorf("HitRate = %v, want 1/3", stats.HitRate)
	}
}

func TestCache_MalformedEntryIsMiss(t *testing.T) {
	store := memory.New()
	c := New(store, WithLogger(quietLogger()))
	ctx := context.Background()
	key := Key{Provider: domain.ProviderGemini, ContentType: domain.ContentTypeText, Content: "x"}

	for _, raw := range []string{"not json", `{"reasoning":"no decision"}`} {
		_ = store.Set(ctx, key.Fingerprint(), []byte(raw), time.Hour)
		if _, ok := c.Get(ctx, key); ok {
			t.Errorf("Get() hit on %q", raw)
		}
	}
	if c.Stats().Errors != 2 {
		t.Errorf("Errors = %d, want 2", c.Stats().Errors)
	}
}

type brokenStore struct{}

var errBroken = errors.New("store offline")

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errBroken }
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error { return errBroken }
func (brokenStore) Delete(context.Context, string) error { return errBroken }
func (brokenStore) Close() error { return nil }

func TestCache_StoreFailuresAreSwallowed(t *testing.T) {
	c := New(brokenStore{}, WithLogger(quietLogger()))
	ctx := context.Background()
	key := Key{Provider: domain.ProviderOpenAI, ContentType: domain.ContentTypeText, Content: "x"}

	c.Set(ctx, key, &domain.ModerationResult{Decision: domain.DecisionApproved})
	if _, ok := c.Get(ctx, key); ok {
		t.Error("Get() hit on broken store")
	}
	c.Invalidate(ctx, key)

	stats := c.Stats()
	if stats.Errors != 3 || stats.Saves != 0 || stats.Misses != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestCache_TTL(t *testing.T) {
	c := New(memory.New(), WithLogger(quietLogger()), WithTTL(30*time.Millisecond))
	ctx := context.Background()
	key := Key{Provider: domain.ProviderOpenAI, ContentType: domain.ContentTypeText, Content: "x"}

	c.Set(ctx, key, &domain.ModerationResult{Decision: domain.DecisionApproved, Reasoning: "ok"})
	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Get(ctx, key); ok {
		t.Error("Get() hit after TTL")
	}
}
