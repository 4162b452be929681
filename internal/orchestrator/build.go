package orchestrator

import (
	"log/slog"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/analyzer"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/provider"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/telemetry"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/vision"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/visualization"
)

// FromRegistry wires an Orchestrator whose text analysis prefers the
// preferred provider. Vision analysis always starts with the registry's
// primary.
func FromRegistry(reg *provider.Registry, preferred domain.Provider, publisher telemetry.Publisher, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	images, _ := reg.ImageGenerator()

	return New(Config{
		Vision:     vision.New(reg.Primary(), reg.Vision(), vision.WithLogger(logger)),
		Content:    analyzer.New(reg, preferred, analyzer.WithLogger(logger)),
		Visualizer: visualization.New(reg, images, visualization.WithLogger(logger)),
		Publisher:  publisher,
		Logger:     logger,
	})
}
