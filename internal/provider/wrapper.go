package provider

import (
	"context"
	"time"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

// TimeoutTextCompleter bounds every Complete call by a fixed timeout.
type TimeoutTextCompleter struct {
	inner   domain.TextCompleter
	timeout time.Duration
}

// NewTimeoutTextCompleter wraps inner. A non-positive timeout disables the bound.
func NewTimeoutTextCompleter(inner domain.TextCompleter, timeout time.Duration) *TimeoutTextCompleter {
	return &TimeoutTextCompleter{inner: inner, timeout: timeout}
}

func (p *TimeoutTextCompleter) Name() domain.Provider {
	return p.inner.Name()
}

func (p *TimeoutTextCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()
	return p.inner.Complete(ctx, prompt)
}

// TimeoutVisionCompleter bounds every CompleteVision call by a fixed timeout.
type TimeoutVisionCompleter struct {
	inner   domain.VisionCompleter
	timeout time.Duration
}

// NewTimeoutVisionCompleter wraps inner. A non-positive timeout disables the bound.
func NewTimeoutVisionCompleter(inner domain.VisionCompleter, timeout time.Duration) *TimeoutVisionCompleter {
	return &TimeoutVisionCompleter{inner: inner, timeout: timeout}
}

func (p *TimeoutVisionCompleter) Name() domain.Provider {
	return p.inner.Name()
}

func (p *TimeoutVisionCompleter) CompleteVision(ctx context.Context, prompt string, imageURL string) (string, error) {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()
	return p.inner.CompleteVision(ctx, prompt, imageURL)
}

// TimeoutImageGenerator bounds every GenerateImage call by a fixed timeout.
type TimeoutImageGenerator struct {
	inner   domain.ImageGenerator
	timeout time.Duration
}

// NewTimeoutImageGenerator wraps inner. A non-positive timeout disables the bound.
func NewTimeoutImageGenerator(inner domain.ImageGenerator, timeout time.Duration) *TimeoutImageGenerator {
	return &TimeoutImageGenerator{inner: inner, timeout: timeout}
}

func (p *TimeoutImageGenerator) GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.ImageResult, error) {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()
	return p.inner.GenerateImage(ctx, req)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
