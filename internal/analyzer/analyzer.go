// Package analyzer classifies text and URL submissions with text models.
package analyzer

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/codec"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

// FallbackResult is returned when no text provider produced an analysis.
//
// It approves the content. Every other exhausted path in the pipeline routes
// to manual review instead; this one keeps submissions flowing while the AI
// providers are down and needs product sign-off before it changes.
func FallbackResult() domain.AnalysisResult {
	return domain.AnalysisResult{
		IsSafe:         true,
		Concerns:       []string{},
		Severity:       domain.SeverityLow,
		DetailedReason: "Analysis failed, defaulting to safe",
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

// CompleterSource lists text completers, first choice first.
type CompleterSource interface {
	Primary() domain.Provider
	Text(first domain.Provider) []domain.TextCompleter
}

// Analyzer runs the moderation prompt against the preferred provider and
// then the alternate one.
type Analyzer struct {
	source    CompleterSource
	preferred domain.Provider
	logger    *slog.Logger
}

// New creates an Analyzer that tries preferred first.
func New(source CompleterSource, preferred domain.Provider, opts ...Option) *Analyzer {
	a := &Analyzer{
		source:    source,
		preferred: preferred,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze classifies content and reports which provider answered.
func (a *Analyzer) Analyze(ctx context.Context, content string, contentType domain.ContentType) (domain.AnalysisResult, domain.Provider) {
	prompt := BuildPrompt(content, string(contentType))

	for _, p := range a.source.Text(a.preferred) {
		body, err := p.Complete(ctx, prompt)
		if err == nil {
			var result domain.AnalysisResult
			if result, err = codec.ParseAnalysis(p.Name(), body); err == nil {
				a.logger.DebugContext(ctx, "content analysis complete",
					slog.String("provider", string(p.Name())),
					slog.Bool("is_safe", result.IsSafe),
					slog.String("severity", string(result.Severity)),
				)
				return result, p.Name()
			}
		}
		a.logger.WarnContext(ctx, "content provider failed",
			slog.String("provider", string(p.Name())),
			slog.String("preferred", string(a.preferred)),
			slog.String("error", err.Error()),
		)
	}

	a.logger.ErrorContext(ctx, "all content providers failed, defaulting to safe")
	return FallbackResult(), a.source.Primary()
}
