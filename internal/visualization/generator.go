// Package visualization decides whether a flagged submission deserves an
// explanatory image for reviewers, and renders it.
//
// Visualization is best effort: every failure collapses to "no image" and
// is logged rather than returned.
package visualization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/codec"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

const MaxPromptLength = 1000

const (
	contentPolicyMessage = "Your prompt was rejected by OpenAI's safety system. Please try a different prompt that follows content guidelines."
	rateLimitMessage     = "Rate limit exceeded. Please try again in a few moments."
)

// CompleterSource lists text completers, first choice first.
type CompleterSource interface {
	Primary() domain.Provider
	HasText(p domain.Provider) bool
	Text(first domain.Provider) []domain.TextCompleter
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// Generator implements the visualization gate and image generation.
type Generator struct {
	source CompleterSource
	images domain.ImageGenerator
	logger *slog.Logger
}

// New creates a Generator. images may be nil, in which case no image is
// ever produced.
func New(source CompleterSource, images domain.ImageGenerator, opts ...Option) *Generator {
	g := &Generator{
		source: source,
		images: images,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type gateAnswer struct {
	ShouldGenerate *bool  `json:"shouldGenerate"`
	Reasoning      string `json:"reasoning"`
}

// ShouldGenerate asks a text model whether an illustration would help a
// reviewer with s. It only ever answers true for flagged content, and
// answers false when no provider gives a usable answer.
func (g *Generator) ShouldGenerate(ctx context.Context, s domain.ModerationState) bool {
	if s.Classification != domain.ClassificationFlagged || s.AnalysisResult == nil {
		return false
	}

	first := g.source.Primary()
	if s.AIProvider == domain.ProviderGemini && g.source.HasText(domain.ProviderGemini) {
		first = domain.ProviderGemini
	}

	prompt := BuildGatePrompt(s)
	for _, p := range g.source.Text(first) {
		body, err := p.Complete(ctx, prompt)
		if err == nil {
			var answer gateAnswer
			if answer, err = codec.Extract[gateAnswer](body); err == nil && answer.ShouldGenerate == nil {
				err = errors.New("answer is missing shouldGenerate")
			}
			if err == nil {
				g.logger.InfoContext(ctx, "visualization decision",
					slog.String("provider", string(p.Name())),
					slog.Bool("should_generate", *answer.ShouldGenerate),
					slog.String("reasoning", answer.Reasoning),
				)
				return *answer.ShouldGenerate
			}
		}
		g.logger.WarnContext(ctx, "visualization decision failed",
			slog.String("provider", string(p.Name())),
			slog.String("error", err.Error()),
		)
	}

	g.logger.WarnContext(ctx, "visualization decision unavailable, defaulting to false")
	return false
}

// Generate renders an explanatory diagram for reasoning and returns its URL,
// or "" when no image could be produced.
func (g *Generator) Generate(ctx context.Context, reasoning string) string {
	if g.images == nil {
		g.logger.WarnContext(ctx, "image generation not configured")
		return ""
	}

	result, err := g.images.GenerateImage(ctx, domain.ImageRequest{
		Prompt:  BuildImagePrompt(reasoning),
		Size:    domain.ImageSizeSquare,
		Quality: domain.ImageQualityStandard,
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "failed to generate visualization", slog.String("error", err.Error()))
		return ""
	}
	if result == nil || result.URL == "" {
		g.logger.WarnContext(ctx, "no image URL returned")
		return ""
	}
	return result.URL
}

// GenerateImage renders an arbitrary prompt. Unlike Generate it reports
// failures, mapping safety rejections and rate limits to messages fit for
// end users.
func (g *Generator) GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.ImageResult, error) {
	if err := validateImageRequest(&req); err != nil {
		return nil, err
	}
	if g.images == nil {
		return nil, fmt.Errorf("image generation: %w", domain.ErrProviderUnavailable)
	}

	result, err := g.images.GenerateImage(ctx, req)
	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Type {
			case domain.ErrorTypeContentPolicy:
				return nil, domain.ErrContentPolicy(contentPolicyMessage).WithProvider(apiErr.Provider).WithCause(err)
			case domain.ErrorTypeRateLimit:
				return nil, domain.ErrRateLimit(rateLimitMessage).WithProvider(apiErr.Provider).WithCause(err)
			}
		}
		return nil, err
	}

	g.logger.InfoContext(ctx, "image generated", slog.Int("prompt_length", utf8.RuneCountInString(req.Prompt)))
	return result, nil
}

func validateImageRequest(req *domain.ImageRequest) error {
	n := utf8.RuneCountInString(req.Prompt)
	if n == 0 {
		return domain.ErrInvalidRequest("prompt is required").WithParam("prompt")
	}
	if n > MaxPromptLength {
		return domain.ErrInvalidRequest(fmt.Sprintf("prompt must be at most %d characters", MaxPromptLength)).WithParam("prompt")
	}

	switch req.Size {
	case "":
		req.Size = domain.ImageSizeSquare
	case domain.ImageSizeSquare, domain.ImageSizeLandscape, domain.ImageSizePortrait:
	default:
		return domain.ErrInvalidRequest("size must be one of 1024x1024, 1792x1024, 1024x1792").WithParam("size")
	}

	switch req.Quality {
	case "":
		req.Quality = domain.ImageQualityStandard
	case domain.ImageQualityStandard, domain.ImageQualityHD:
	default:
		return domain.ErrInvalidRequest("quality must be standard or hd").WithParam("quality")
	}
	return nil
}
