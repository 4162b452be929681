// Package gemini adapts the Gemini generateContent API to the moderation
// provider interfaces.
package gemini

import (
	"context"
	"net/http"
	"strings"

	geminiapi "github.com/tjfontaine/polyglot-moderation-gateway/internal/api/gemini"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/codec"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

const (
	DefaultTextModel   = "gemini-flash-latest"
	DefaultVisionModel = "gemini-1.5-flash"
)

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithTextModel overrides the model used for text completions.
func WithTextModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.textModel = model
		}
	}
}

// WithVisionModel overrides the model used for image analysis.
func WithVisionModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.visionModel = model
		}
	}
}

// WithImageFetcher sets the fetcher used to inline remote images.
func WithImageFetcher(f *codec.ImageFetcher) ProviderOption {
	return func(p *Provider) {
		p.fetcher = f
	}
}

// Provider implements domain.TextCompleter and domain.VisionCompleter.
type Provider struct {
	client      *geminiapi.Client
	fetcher     *codec.ImageFetcher
	baseURL     string
	httpClient  *http.Client
	textModel   string
	visionModel string
}

// New creates a new Gemini provider.
func New(apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{
		textModel:   DefaultTextModel,
		visionModel: DefaultVisionModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fetcher == nil {
		p.fetcher = codec.NewImageFetcher()
	}

	var clientOpts []geminiapi.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, geminiapi.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, geminiapi.WithHTTPClient(p.httpClient))
	}

	p.client = geminiapi.NewClient(apiKey, clientOpts...)
	return p
}

func (p *Provider) Name() domain.Provider {
	return domain.ProviderGemini
}

func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	return p.generate(ctx, p.textModel, []geminiapi.Part{{Text: prompt}})
}

// CompleteVision inlines the image, fetching it first when imageURL is a
// remote URL, since the API takes only inline data.
func (p *Provider) CompleteVision(ctx context.Context, prompt string, imageURL string) (string, error) {
	source, err := p.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return "", domain.NewAPIError(domain.ErrorTypeInvalidRequest, "failed to prepare image").
			WithProvider(domain.ProviderGemini).
			WithCause(err)
	}

	parts := []geminiapi.Part{
		{Text: prompt},
		{InlineData: &geminiapi.Blob{MimeType: source.MediaType, Data: source.Data}},
	}
	return p.generate(ctx, p.visionModel, parts)
}

func (p *Provider) generate(ctx context.Context, model string, parts []geminiapi.Part) (string, error) {
	resp, err := p.client.GenerateContent(ctx, model, &geminiapi.GenerateContentRequest{
		Contents: []geminiapi.Content{{Role: "user", Parts: parts}},
	})
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		reason := "empty completion"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			reason += " (finish reason " + resp.Candidates[0].FinishReason + ")"
		}
		return "", domain.ErrInvalidResponse(domain.ProviderGemini, reason)
	}
	return text, nil
}
