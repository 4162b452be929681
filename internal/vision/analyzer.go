// Package vision classifies image submissions with vision-capable models.
//
// Providers are tried in order; when none produces a parseable answer the
// analyzer returns a result that routes the image to manual review. It never
// approves an image it could not analyze.
package vision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/codec"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

// FallbackResult is returned when every vision provider failed.
func FallbackResult() domain.AnalysisResult {
	return domain.AnalysisResult{
		IsSafe:         false,
		Concerns:       []string{"Unable to analyze image content - vision models unavailable"},
		Severity:       domain.SeverityMedium,
		DetailedReason: "Image analysis unavailable. This image will be reviewed manually to ensure it meets community guidelines.",
	}
}

// ErrorResult is returned when the analysis procedure itself broke.
func ErrorResult() domain.AnalysisResult {
	return domain.AnalysisResult{
		IsSafe:         false,
		Concerns:       []string{"Image analysis system error"},
		Severity:       domain.SeverityMedium,
		DetailedReason: "An error occurred while analyzing this image. It will be reviewed manually to ensure safety.",
	}
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// Analyzer runs the vision prompt against an ordered list of providers.
type Analyzer struct {
	providers []domain.VisionCompleter
	primary   domain.Provider
	logger    *slog.Logger
}

// New creates an Analyzer. providers are tried in the given order; primary
// tags results that no provider produced.
func New(primary domain.Provider, providers []domain.VisionCompleter, opts ...Option) *Analyzer {
	a := &Analyzer{
		providers: providers,
		primary:   primary,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze classifies the image at imageURL, an http(s) URL or a base64
// image data URI. Any other reference returns domain.ErrUnsupportedImage so
// the caller can fall back to text analysis. The returned provider is the
// one that produced the result.
func (a *Analyzer) Analyze(ctx context.Context, imageURL string) (result domain.AnalysisResult, provider domain.Provider, err error) {
	if !codec.IsImageReference(imageURL) {
		return domain.AnalysisResult{}, "", fmt.Errorf("%w: must be http(s) URL or data:image URI", domain.ErrUnsupportedImage)
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.ErrorContext(ctx, "vision analysis panicked", slog.Any("panic", r))
			result, provider, err = ErrorResult(), a.primary, nil
		}
	}()

	for _, p := range a.providers {
		body, callErr := p.CompleteVision(ctx, Prompt, imageURL)
		if callErr != nil {
			a.logger.WarnContext(ctx, "vision provider failed",
				slog.String("provider", string(p.Name())),
				slog.String("error", callErr.Error()),
			)
			continue
		}

		parsed, parseErr := codec.ParseAnalysis(p.Name(), body)
		if parseErr != nil {
			a.logger.WarnContext(ctx, "vision provider returned unparseable analysis",
				slog.String("provider", string(p.Name())),
				slog.String("error", parseErr.Error()),
			)
			continue
		}

		a.logger.DebugContext(ctx, "vision analysis complete",
			slog.String("provider", string(p.Name())),
			slog.Bool("is_safe", parsed.IsSafe),
			slog.Int("concerns", len(parsed.Concerns)),
		)
		return parsed, p.Name(), nil
	}

	a.logger.WarnContext(ctx, "all vision providers failed", slog.Int("providers", len(a.providers)))
	return FallbackResult(), a.primary, nil
}
