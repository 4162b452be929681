package domain

import (
	"context"
)

// TextCompleter is a provider that answers a single prompt with a single
// text completion.
type TextCompleter interface {
	Name() Provider

	// Complete sends prompt and returns the raw completion body.
	Complete(ctx context.Context, prompt string) (string, error)
}

// VisionCompleter is a provider that answers a prompt about an image.
type VisionCompleter interface {
	Name() Provider

	// CompleteVision sends prompt together with the image reference, which
	// is either an http(s) URL or a base64 data URI.
	CompleteVision(ctx context.Context, prompt string, imageURL string) (string, error)
}

// ImageGenerator is a provider that renders an image from a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
}

// ImageSize is the requested output resolution.
type ImageSize string

const (
	ImageSizeSquare    ImageSize = "1024x1024"
	ImageSizeLandscape ImageSize = "1792x1024"
	ImageSizePortrait  ImageSize = "1024x1792"
)

// ImageQuality is the requested rendering quality.
type ImageQuality string

const (
	ImageQualityStandard ImageQuality = "standard"
	ImageQualityHD       ImageQuality = "hd"
)

// ImageRequest describes one image generation call.
type ImageRequest struct {
	Prompt  string       `json:"prompt"`
	Size    ImageSize    `json:"size,omitempty"`
	Quality ImageQuality `json:"quality,omitempty"`
}

// ImageResult is the outcome of an image generation call.
type ImageResult struct {
	URL           string `json:"imageUrl"`
	RevisedPrompt string `json:"revisedPrompt,omitempty"`
}

// ImageSource is an image as inline base64 data.
type ImageSource struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}
