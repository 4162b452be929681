package codec

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/pkg/safehttp"
)

// ImageFetcher turns image references into inline base64 data for
// providers that do not accept remote URLs.
type ImageFetcher struct {
	client  *http.Client
	maxSize int64 // Maximum allowed image size in bytes
}

// ImageFetcherOption configures the image fetcher.
type ImageFetcherOption func(*ImageFetcher)

// WithImageHTTPClient sets a custom HTTP client for the fetcher.
func WithImageHTTPClient(client *http.Client) ImageFetcherOption {
	return func(f *ImageFetcher) {
		f.client = client
	}
}

// WithMaxSize sets the maximum allowed image size.
func WithMaxSize(maxSize int64) ImageFetcherOption {
	return func(f *ImageFetcher) {
		f.maxSize = maxSize
	}
}

// NewImageFetcher creates a new image fetcher. The default client refuses
// to dial private and loopback addresses.
func NewImageFetcher(opts ...ImageFetcherOption) *ImageFetcher {
	f := &ImageFetcher{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: safehttp.SafeTransport,
		},
		maxSize: 5 * 1024 * 1024, // submissions are capped at 5MB
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsImageReference reports whether ref is an http(s) URL or an image data URI.
func IsImageReference(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "data:image")
}

// Fetch resolves ref to inline image data. Data URIs are decoded in place,
// remote URLs are downloaded.
func (f *ImageFetcher) Fetch(ctx context.Context, ref string) (*domain.ImageSource, error) {
	if strings.HasPrefix(ref, "data:") {
		return ParseDataURL(ref)
	}

	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return nil, fmt.Errorf("%w: must be http://, https:// or data:image", domain.ErrUnsupportedImage)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: status %d", resp.StatusCode)
	}

	if resp.ContentLength > f.maxSize {
		return nil, fmt.Errorf("image too large: %d bytes (max %d)", resp.ContentLength, f.maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("image too large: exceeds %d bytes", f.maxSize)
	}

	mediaType := detectMediaType(resp.Header.Get("Content-Type"), data, ref)
	if !isSupportedMediaType(mediaType) {
		return nil, fmt.Errorf("unsupported media type: %s", mediaType)
	}

	return &domain.ImageSource{
		MediaType: normalizeMediaType(mediaType),
		Data:      base64.StdEncoding.EncodeToString(data),
	}, nil
}

// ParseDataURL splits a base64 data URI into media type and payload.
// Format: data:image/jpeg;base64,/9j/4AAQSkZ...
func ParseDataURL(ref string) (*domain.ImageSource, error) {
	content, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}

	metadata, data, ok := strings.Cut(content, ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URL: missing comma separator")
	}

	parts := strings.Split(metadata, ";")
	mediaType := parts[0]
	if !isSupportedMediaType(mediaType) {
		return nil, fmt.Errorf("unsupported media type: %s", mediaType)
	}

	isBase64 := false
	for _, part := range parts[1:] {
		if part == "base64" {
			isBase64 = true
			break
		}
	}
	if !isBase64 {
		return nil, fmt.Errorf("data URL must be base64 encoded")
	}

	return &domain.ImageSource{
		MediaType: normalizeMediaType(mediaType),
		Data:      data,
	}, nil
}

// detectMediaType prefers the response header, then content sniffing, then
// the URL suffix.
func detectMediaType(header string, data []byte, url string) string {
	if header != "" && !strings.HasPrefix(header, "application/octet-stream") {
		return header
	}
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return inferMediaType(url)
}

// inferMediaType attempts to infer the media type from a URL.
func inferMediaType(url string) string {
	urlLower := strings.ToLower(url)

	switch {
	case strings.HasSuffix(urlLower, ".jpg") || strings.HasSuffix(urlLower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(urlLower, ".png"):
		return "image/png"
	case strings.HasSuffix(urlLower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(urlLower, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func isSupportedMediaType(mediaType string) bool {
	switch normalizeMediaType(mediaType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeMediaType(mediaType string) string {
	mainType := strings.Split(mediaType, ";")[0]
	mainType = strings.TrimSpace(strings.ToLower(mainType))

	if mainType == "image/jpg" {
		return "image/jpeg"
	}
	return mainType
}
