// Package moderation is the entry point for moderation requests. It puts
// the result cache in front of per-provider pipelines and keeps request
// counters.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/cache"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/telemetry"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/tokens"
)

const (
	// DefaultCostPerRequest is the estimated provider spend avoided by one
	// cache hit, in USD.
	DefaultCostPerRequest = 0.005

	// DefaultStatsInterval is how often RunStatsReporter logs.
	DefaultStatsInterval = 5 * time.Minute
)

// Pipeline moderates one submission.
type Pipeline interface {
	Moderate(ctx context.Context, content string, contentType domain.ContentType) (domain.ModerationState, error)
}

// PipelineFactory builds a pipeline whose text analysis prefers provider.
type PipelineFactory func(preferred domain.Provider) (Pipeline, error)

// Config holds the collaborators of a Service.
type Config struct {
	// Default is used when a request names no provider.
	Default     domain.Provider
	NewPipeline PipelineFactory
	Cache       *cache.Cache

	// Tokens estimates tokens saved by cache hits; nil disables the estimate.
	Tokens     *tokens.Counter
	TokenModel string

	CostPerRequest float64
	Publisher      telemetry.Publisher
	Logger         *slog.Logger
}

// Stats is a snapshot of service counters.
type Stats struct {
	TotalRequests        int64       `json:"totalRequests"`
	CachedRequests       int64       `json:"cachedRequests"`
	AIRequests           int64       `json:"aiRequests"`
	FailedRequests       int64       `json:"failedRequests"`
	CacheHitRate         float64     `json:"cacheHitRate"`
	EstimatedCostSavings float64     `json:"estimatedCostSavings"`
	EstimatedTokensSaved int64       `json:"estimatedTokensSaved"`
	Cache                cache.Stats `json:"cache"`
}

// Service is safe for concurrent use.
type Service struct {
	defaultProvider domain.Provider
	newPipeline     PipelineFactory
	cache           *cache.Cache
	tokens          *tokens.Counter
	tokenModel      string
	costPerRequest  float64
	publisher       telemetry.Publisher
	logger          *slog.Logger

	mu        sync.Mutex
	pipelines map[domain.Provider]Pipeline

	totalRequests  atomic.Int64
	cachedRequests atomic.Int64
	aiRequests     atomic.Int64
	failedRequests atomic.Int64
	tokensSaved    atomic.Int64
}

// New creates a Service and builds the pipeline for the default provider.
func New(cfg Config) (*Service, error) {
	if cfg.NewPipeline == nil {
		return nil, errors.New("moderation service requires a pipeline factory")
	}
	if cfg.Cache == nil {
		return nil, errors.New("moderation service requires a cache")
	}

	s := &Service{
		defaultProvider: cfg.Default,
		newPipeline:     cfg.NewPipeline,
		cache:           cfg.Cache,
		tokens:          cfg.Tokens,
		tokenModel:      cfg.TokenModel,
		costPerRequest:  cfg.CostPerRequest,
		publisher:       cfg.Publisher,
		logger:          cfg.Logger,
		pipelines:       make(map[domain.Provider]Pipeline),
	}
	if s.defaultProvider == "" {
		s.defaultProvider = domain.DefaultProvider
	}
	if s.costPerRequest <= 0 {
		s.costPerRequest = DefaultCostPerRequest
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.publisher == nil {
		s.publisher = telemetry.NewSpanPublisher(s.logger)
	}

	if _, err := s.pipeline(s.defaultProvider); err != nil {
		return nil, err
	}
	return s, nil
}

// Moderate returns the verdict for content, from the cache when possible.
// An empty provider selects the default.
func (s *Service) Moderate(ctx context.Context, content string, contentType domain.ContentType, provider domain.Provider) (*domain.ModerationResult, error) {
	if provider == "" {
		provider = s.defaultProvider
	}
	if !provider.Valid() {
		return nil, domain.ErrInvalidRequest(fmt.Sprintf("unknown aiProvider %q", provider)).WithParam("aiProvider")
	}
	if !contentType.Valid() {
		return nil, domain.ErrInvalidRequest(fmt.Sprintf("unknown contentType %q", contentType)).WithParam("contentType")
	}

	s.totalRequests.Add(1)
	key := cache.Key{Provider: provider, ContentType: contentType, Content: content}

	if cached, ok := s.cache.Get(ctx, key); ok {
		s.cachedRequests.Add(1)
		if s.tokens != nil {
			s.tokensSaved.Add(int64(s.tokens.Count(s.tokenModel, content)))
		}
		s.logger.InfoContext(ctx, "moderation served from cache",
			slog.String("provider", string(provider)),
			slog.String("decision", string(cached.Decision)),
		)
		s.publishCompleted(ctx, provider, cached, true)
		return cached, nil
	}

	s.aiRequests.Add(1)
	result, err := s.run(ctx, provider, content, contentType)
	if err != nil {
		s.failedRequests.Add(1)
		s.publisher.Publish(ctx, telemetry.Event{
			Name: telemetry.EventModerationFailed,
			Attributes: []attribute.KeyValue{
				attribute.String("provider", string(provider)),
				attribute.String("contentType", string(contentType)),
				attribute.String("error", err.Error()),
			},
		})
		s.logger.ErrorContext(ctx, "moderation failed",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.cache.Set(ctx, key, result)
	s.publishCompleted(ctx, provider, result, false)
	return result, nil
}

func (s *Service) run(ctx context.Context, provider domain.Provider, content string, contentType domain.ContentType) (*domain.ModerationResult, error) {
	p, err := s.pipeline(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProcessing, err)
	}

	state, err := p.Moderate(ctx, content, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProcessing, err)
	}
	if state.Decision == "" || state.Reasoning == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrProcessing, domain.ErrIncompleteResult)
	}
	return state.Result(), nil
}

func (s *Service) publishCompleted(ctx context.Context, provider domain.Provider, r *domain.ModerationResult, cached bool) {
	s.publisher.Publish(ctx, telemetry.Event{
		Name: telemetry.EventModerationCompleted,
		Attributes: []attribute.KeyValue{
			attribute.String("provider", string(provider)),
			attribute.String("decision", string(r.Decision)),
			attribute.Bool("cached", cached),
			attribute.Bool("hasVisualization", r.VisualizationURL != ""),
		},
	})
}

// pipeline returns the pipeline for provider, building it on first use.
func (s *Service) pipeline(provider domain.Provider) (Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pipelines[provider]; ok {
		return p, nil
	}
	p, err := s.newPipeline(provider)
	if err != nil {
		return nil, fmt.Errorf("build %s pipeline: %w", provider, err)
	}
	s.pipelines[provider] = p
	return p, nil
}

// Invalidate drops the cached verdict for content.
func (s *Service) Invalidate(ctx context.Context, content string, contentType domain.ContentType, provider domain.Provider) {
	if provider == "" {
		provider = s.defaultProvider
	}
	s.cache.Invalidate(ctx, cache.Key{Provider: provider, ContentType: contentType, Content: content})
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	st := Stats{
		TotalRequests:        s.totalRequests.Load(),
		CachedRequests:       s.cachedRequests.Load(),
		AIRequests:           s.aiRequests.Load(),
		FailedRequests:       s.failedRequests.Load(),
		EstimatedTokensSaved: s.tokensSaved.Load(),
		Cache:                s.cache.Stats(),
	}
	if st.TotalRequests > 0 {
		st.CacheHitRate = float64(st.CachedRequests) / float64(st.TotalRequests)
	}
	st.EstimatedCostSavings = float64(st.CachedRequests) * s.costPerRequest
	return st
}

// RunStatsReporter logs Stats every interval until ctx is done.
func (s *Service) RunStatsReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Stats()
			s.logger.Info("moderation stats",
				slog.Int64("total_requests", st.TotalRequests),
				slog.Int64("cached_requests", st.CachedRequests),
				slog.Int64("ai_requests", st.AIRequests),
				slog.Int64("failed_requests", st.FailedRequests),
				slog.Float64("cache_hit_rate", st.CacheHitRate),
				slog.Float64("estimated_cost_savings", st.EstimatedCostSavings),
				slog.Int64("estimated_tokens_saved", st.EstimatedTokensSaved),
			)
		}
	}
}
