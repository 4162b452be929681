package runtime

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/config"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/storage"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/telemetry"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithFileConfig loads configuration from path and the environment.
func WithFileConfig(path string) Option {
	return func(g *Gateway) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		g.cfg = cfg
		return nil
	}
}

// WithLogger sets the logger for the gateway.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithStore overrides the cache store selected by configuration. The
// gateway closes it on shutdown.
func WithStore(store storage.Store) Option {
	return func(g *Gateway) error {
		g.store = store
		return nil
	}
}

// WithEventPublisher adds a sink for pipeline events. Events are always
// recorded on the active span as well; the option may be given more than once.
func WithEventPublisher(publisher telemetry.Publisher) Option {
	return func(g *Gateway) error {
		g.sinks = append(g.sinks, publisher)
		return nil
	}
}

// WithHTTPClient sets the client used for provider API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) error {
		g.httpClient = client
		return nil
	}
}
