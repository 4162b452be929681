// Package gemini is a minimal client for the Google Generative Language API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	apiVersion     = "v1beta"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is an HTTP client for the Gemini generateContent endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Gemini API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateContent sends a generateContent request for model.
func (c *Client) GenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, apiVersion, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewAPIError(domain.ErrorTypeUnavailable, "request failed").
			WithProvider(domain.ProviderGemini).
			WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if apiErr, err := ParseErrorResponse(respBody); err == nil && apiErr != nil {
			return nil, apiErr.ToCanonical(resp.StatusCode)
		}
		return nil, domain.NewAPIError(domain.ErrorTypeForStatus(resp.StatusCode), fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(respBody))).
			WithProvider(domain.ProviderGemini).
			WithStatusCode(resp.StatusCode)
	}

	var result GenerateContentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.ErrInvalidResponse(domain.ProviderGemini, "failed to unmarshal response").WithCause(err)
	}

	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return nil, domain.ErrContentPolicy("prompt blocked: " + result.PromptFeedback.BlockReason).
			WithProvider(domain.ProviderGemini)
	}

	return &result, nil
}

// The key travels in a header so request URLs stay free of credentials.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
}
