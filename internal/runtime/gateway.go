// Package runtime assembles the moderation gateway from configuration and
// manages its lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/cache"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/config"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/moderation"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/orchestrator"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/provider"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/server"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/telemetry"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/tokens"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/visualization"
)

// Gateway owns the providers, cache store, moderation service and HTTP
// server of one running instance.
type Gateway struct {
	// Dependencies (injected via options)
	cfg        *config.Config
	store      storage.Store
	sinks      []telemetry.Publisher
	publisher  telemetry.Publisher
	httpClient *http.Client
	logger     *slog.Logger

	registry *provider.Registry
	service  *moderation.Service
	server   *server.Server

	closeOnce sync.Once
	closeErr  error
}

// New builds a Gateway. A configuration is required; the cache store is
// opened from it unless WithStore is given.
func New(ctx context.Context, opts ...Option) (*Gateway, error) {
	gw := &Gateway{logger: slog.Default()}

	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.cfg == nil {
		return nil, errors.New("config required (use WithConfig or WithFileConfig)")
	}
	if err := gw.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	gw.publisher = append(telemetry.Multi{telemetry.NewSpanPublisher(gw.logger)}, gw.sinks...)

	if gw.store == nil {
		store, err := openStore(ctx, gw.cfg.Cache, gw.logger)
		if err != nil {
			return nil, fmt.Errorf("open cache store: %w", err)
		}
		gw.store = store
	}

	gw.registry = newRegistry(gw.cfg, gw.httpClient)

	svc, err := moderation.New(moderation.Config{
		Default: gw.cfg.PreferredProvider(),
		NewPipeline: func(preferred domain.Provider) (moderation.Pipeline, error) {
			return orchestrator.FromRegistry(gw.registry, preferred, gw.publisher, gw.logger)
		},
		Cache: cache.New(gw.store,
			cache.WithTTL(gw.cfg.Cache.TTL),
			cache.WithLogger(gw.logger),
		),
		Tokens:         tokens.NewCounter(),
		TokenModel:     gw.tokenModel(),
		CostPerRequest: gw.cfg.Stats.CostPerRequest,
		Publisher:      gw.publisher,
		Logger:         gw.logger,
	})
	if err != nil {
		gw.store.Close()
		return nil, fmt.Errorf("create moderation service: %w", err)
	}
	gw.service = svc

	images, _ := gw.registry.ImageGenerator()
	gw.server = server.New(server.Config{
		Addr:           gw.cfg.Server.Addr(),
		RequestTimeout: gw.cfg.Server.RequestTimeout,
		Logger:         gw.logger,
		Moderator:      svc,
		Images:         visualization.New(gw.registry, images, visualization.WithLogger(gw.logger)),
		Checks: map[string]server.ReadinessCheck{
			"cache": func(ctx context.Context) error {
				return storage.Ping(ctx, gw.store)
			},
		},
	})

	gw.logger.Info("gateway configured",
		slog.String("preferred_provider", string(gw.cfg.PreferredProvider())),
		slog.Bool("gemini_enabled", gw.registry.HasText(domain.ProviderGemini)),
		slog.String("cache", gw.cfg.Cache.Type),
	)
	return gw, nil
}

// tokenModel is the model whose encoding estimates tokens saved.
func (g *Gateway) tokenModel() string {
	if g.cfg.PreferredProvider() == domain.ProviderGemini && g.cfg.Providers.Gemini.TextModel != "" {
		return g.cfg.Providers.Gemini.TextModel
	}
	if g.cfg.Providers.OpenAI.TextModel != "" {
		return g.cfg.Providers.OpenAI.TextModel
	}
	return "gpt-3.5-turbo"
}

// Service returns the moderation service.
func (g *Gateway) Service() *moderation.Service {
	return g.service
}

// Handler returns the HTTP handler serving the gateway API.
func (g *Gateway) Handler() http.Handler {
	return g.server.Router
}

// Run serves HTTP and reports stats until ctx is done, then releases
// resources.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.service.RunStatsReporter(ctx, g.cfg.Stats.Interval)
	}()

	err := g.server.Run(ctx)
	cancel()
	wg.Wait()

	if closeErr := g.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close releases the cache store. It is safe to call more than once.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		if err := g.store.Close(); err != nil {
			g.logger.Error("failed to close cache store", slog.String("error", err.Error()))
			g.closeErr = err
		}
	})
	return g.closeErr
}
