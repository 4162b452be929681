package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/config"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/provider"
	geminiprovider "github.com/tjfontaine/polyglot-moderation-gateway/internal/provider/gemini"
	openaiprovider "github.com/tjfontaine/polyglot-moderation-gateway/internal/provider/openai"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage/memory"
	redisstore "github.com/tjfontaine/polyglot-moderation-gateway/internal/storage/redis"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage/sqlite"
)

// newRegistry registers OpenAI for text, vision and images, and Gemini for
// text and vision when it has a key. OpenAI is always the primary.
func newRegistry(cfg *config.Config, httpClient *http.Client) *provider.Registry {
	reg := provider.NewRegistry(domain.ProviderOpenAI,
		provider.WithCallTimeout(cfg.Providers.CallTimeout),
	)

	oc := cfg.Providers.OpenAI
	openaiOpts := []openaiprovider.ProviderOption{
		openaiprovider.WithTextModel(oc.TextModel),
		openaiprovider.WithVisionModel(oc.VisionModel),
		openaiprovider.WithImageModel(oc.ImageModel),
	}
	if oc.BaseURL != "" {
		openaiOpts = append(openaiOpts, openaiprovider.WithBaseURL(oc.BaseURL))
	}
	if httpClient != nil {
		openaiOpts = append(openaiOpts, openaiprovider.WithHTTPClient(httpClient))
	}
	op := openaiprovider.New(oc.APIKey, openaiOpts...)
	reg.RegisterText(op).RegisterVision(op).SetImageGenerator(op)

	gc := cfg.Providers.Gemini
	if gc.APIKey == "" {
		return reg
	}
	geminiOpts := []geminiprovider.ProviderOption{
		geminiprovider.WithTextModel(gc.TextModel),
		geminiprovider.WithVisionModel(gc.VisionModel),
	}
	if gc.BaseURL != "" {
		geminiOpts = append(geminiOpts, geminiprovider.WithBaseURL(gc.BaseURL))
	}
	if httpClient != nil {
		geminiOpts = append(geminiOpts, geminiprovider.WithHTTPClient(httpClient))
	}
	gp := geminiprovider.New(gc.APIKey, geminiOpts...)
	reg.RegisterText(gp).RegisterVision(gp)

	return reg
}

// openStore opens the cache backend named by cfg.Type. Memory and sqlite
// stores sweep expired entries every cfg.SweepInterval until closed.
func openStore(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Type {
	case config.CacheMemory, "":
		return memory.New(
			memory.WithSweepInterval(cfg.SweepInterval),
			memory.WithLogger(logger),
		), nil
	case config.CacheRedis:
		return redisstore.Connect(ctx, cfg.Redis.URL, redisstore.WithPrefix("moderation-gateway:"))
	case config.CacheSQLite:
		return sqlite.New(cfg.SQLite.Path,
			sqlite.WithPurgeInterval(cfg.SweepInterval),
			sqlite.WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}
