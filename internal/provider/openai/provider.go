// Package openai adapts github.com/sashabaranov/go-openai to the moderation
// provider interfaces: chat completion, vision completion and DALL-E.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

const (
	DefaultTextModel   = openai.GPT3Dot5Turbo
	DefaultVisionModel = openai.GPT4o
	DefaultImageModel  = openai.CreateImageModelDallE3

	visionMaxTokens = 1000
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

// WithImageModel overrides the image generation model.
func WithImageModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.imageModel = model
		}
	}
}

// Provider implements domain.TextCompleter, domain.VisionCompleter and
// domain.ImageGenerator against the OpenAI API.
type Provider struct {
	client      *openai.Client
	baseURL     string
	httpClient  *http.Client
	textModel   string
	visionModel string
	imageModel  string
}

// New creates a new OpenAI provider.
func New(apiKey string, opts ...ProviderOption) *Provider {
	p := &Provider{
		textModel:   DefaultTextModel,
		visionModel: DefaultVisionModel,
		imageModel:  DefaultImageModel,
	}
	for _, opt := range opts {
		opt(p)
	}

	cfg := openai.DefaultConfig(apiKey)
	if p.baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(p.baseURL, "/")
	}
	if p.httpClient != nil {
		cfg.HTTPClient = p.httpClient
	}

	p.client = openai.NewClientWithConfig(cfg)
	return p
}

func (p *Provider) Name() domain.Provider {
	return domain.ProviderOpenAI
}

// Complete sends prompt as a single user message.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.textModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", toCanonicalError(err)
	}
	return firstChoice(resp)
}

// CompleteVision sends prompt with the image attached at high detail. Both
// remote URLs and data URIs are passed through unchanged.
func (p *Provider) CompleteVision(ctx context.Context, prompt string, imageURL string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		MaxTokens:   visionMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", toCanonicalError(err)
	}
	return firstChoice(resp)
}

// GenerateImage renders a single image and returns its URL.
func (p *Provider) GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.ImageResult, error) {
	size := req.Size
	if size == "" {
		size = domain.ImageSizeSquare
	}
	quality := req.Quality
	if quality == "" {
		quality = domain.ImageQualityStandard
	}

	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Model:          p.imageModel,
		Prompt:         req.Prompt,
		N:              1,
		Size:           string(size),
		Quality:        string(quality),
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, toCanonicalError(err)
	}

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, domain.ErrInvalidResponse(domain.ProviderOpenAI, "no image URL returned")
	}

	return &domain.ImageResult{
		URL:           resp.Data[0].URL,
		RevisedPrompt: resp.Data[0].RevisedPrompt,
	}, nil
}

func firstChoice(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", domain.ErrInvalidResponse(domain.ProviderOpenAI, "no choices returned")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", domain.ErrInvalidResponse(domain.ProviderOpenAI, "empty completion")
	}
	return content, nil
}

// toCanonicalError maps go-openai errors onto domain.APIError.
func toCanonicalError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		errType := domain.ErrorTypeForStatus(apiErr.HTTPStatusCode)
		if code := fmt.Sprint(apiErr.Code); code == "content_policy_violation" {
			errType = domain.ErrorTypeContentPolicy
		} else if code == "invalid_api_key" {
			errType = domain.ErrorTypeAuthentication
		}
		return domain.NewAPIError(errType, apiErr.Message).
			WithProvider(domain.ProviderOpenAI).
			WithStatusCode(apiErr.HTTPStatusCode).
			WithCause(err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return domain.NewAPIError(domain.ErrorTypeForStatus(reqErr.HTTPStatusCode), fmt.Sprintf("request failed with status %d", reqErr.HTTPStatusCode)).
			WithProvider(domain.ProviderOpenAI).
			WithStatusCode(reqErr.HTTPStatusCode).
			WithCause(err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewAPIError(domain.ErrorTypeUnavailable, err.Error()).
			WithProvider(domain.ProviderOpenAI).
			WithCause(err)
	}

	return domain.NewAPIError(domain.ErrorTypeUnavailable, "request failed").
		WithProvider(domain.ProviderOpenAI).
		WithCause(err)
}
