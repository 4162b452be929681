package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

// ErrFakeProvider is returned by fakes configured to fail.
var ErrFakeProvider = errors.New("fake provider failure")

// FakeProvider implements domain.TextCompleter and domain.VisionCompleter
// with canned answers. Calls are counted and prompts recorded.
type FakeProvider struct {
	name    domain.Provider
	answer  string
	err     error
	panics  bool
	respond func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
	images  []string
}

// NewFakeProvider returns a fake that answers every call with answer.
func NewFakeProvider(name domain.Provider, answer string) *FakeProvider {
	return &FakeProvider{name: name, answer: answer}
}

// NewFailingProvider returns a fake whose calls all fail.
func NewFailingProvider(name domain.Provider) *FakeProvider {
	return &FakeProvider{name: name, err: ErrFakeProvider}
}

// NewScriptedProvider returns a fake that answers each prompt with respond.
func NewScriptedProvider(name domain.Provider, respond func(prompt string) (string, error)) *FakeProvider {
	return &FakeProvider{name: name, respond: respond}
}

// NewPanickingProvider returns a fake whose calls panic.
func NewPanickingProvider(name domain.Provider) *FakeProvider {
	return &FakeProvider{name: name, panics: true}
}

func (f *FakeProvider) Name() domain.Provider { return f.name }

func (f *FakeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return f.call(prompt, "")
}

func (f *FakeProvider) CompleteVision(ctx context.Context, prompt string, imageURL string) (string, error) {
	return f.call(prompt, imageURL)
}

func (f *FakeProvider) call(prompt, image string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	if image != "" {
		f.images = append(f.images, image)
	}
	f.mu.Unlock()

	if f.panics {
		panic("fake provider panic")
	}
	if f.err != nil {
		return "", f.err
	}
	if f.respond != nil {
		return f.respond(prompt)
	}
	return f.answer, nil
}

// Calls returns the number of calls made so far.
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// Prompts returns a copy of the prompts received.
func (f *FakeProvider) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// Images returns a copy of the image references received.
func (f *FakeProvider) Images() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.images...)
}

// FakeImageGenerator implements domain.ImageGenerator.
type FakeImageGenerator struct {
	URL string
	Err error

	mu       sync.Mutex
	requests []domain.ImageRequest
}

func (f *FakeImageGenerator) GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.ImageResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	return &domain.ImageResult{URL: f.URL, RevisedPrompt: req.Prompt}, nil
}

// Calls returns the number of generation requests made.
func (f *FakeImageGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns a copy of the requests received.
func (f *FakeImageGenerator) Requests() []domain.ImageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ImageRequest(nil), f.requests...)
}
