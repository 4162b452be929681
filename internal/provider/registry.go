// Package provider holds the configured AI providers and the order in which
// each pipeline stage should try them.
package provider

import (
	"time"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCallTimeout bounds every provider call made through the registry.
func WithCallTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.callTimeout = d
	}
}

// Registry holds the configured providers. It is built once at startup and
// is read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	primary     domain.Provider
	callTimeout time.Duration
	text        map[domain.Provider]domain.TextCompleter
	vision      map[domain.Provider]domain.VisionCompleter
	images      domain.ImageGenerator
}

// NewRegistry creates an empty registry whose primary provider is primary.
func NewRegistry(primary domain.Provider, opts ...RegistryOption) *Registry {
	r := &Registry{
		primary: primary,
		text:    make(map[domain.Provider]domain.TextCompleter),
		vision:  make(map[domain.Provider]domain.VisionCompleter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterText adds a text completer, replacing any with the same name.
func (r *Registry) RegisterText(c domain.TextCompleter) *Registry {
	r.text[c.Name()] = NewTimeoutTextCompleter(c, r.callTimeout)
	return r
}

// RegisterVision adds a vision completer, replacing any with the same name.
func (r *Registry) RegisterVision(c domain.VisionCompleter) *Registry {
	r.vision[c.Name()] = NewTimeoutVisionCompleter(c, r.callTimeout)
	return r
}

// SetImageGenerator sets the image generation backend.
func (r *Registry) SetImageGenerator(g domain.ImageGenerator) *Registry {
	r.images = NewTimeoutImageGenerator(g, r.callTimeout)
	return r
}

// Primary returns the primary provider name.
func (r *Registry) Primary() domain.Provider {
	return r.primary
}

// HasText reports whether a text completer is registered for p.
func (r *Registry) HasText(p domain.Provider) bool {
	_, ok := r.text[p]
	return ok
}

// Text returns the text completers to try, first choice first: first, then
// the other provider. Unconfigured providers are skipped.
func (r *Registry) Text(first domain.Provider) []domain.TextCompleter {
	var out []domain.TextCompleter
	for _, p := range order(first) {
		if c, ok := r.text[p]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Vision returns the vision completers to try: primary, then secondary.
func (r *Registry) Vision() []domain.VisionCompleter {
	var out []domain.VisionCompleter
	for _, p := range order(r.primary) {
		if c, ok := r.vision[p]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ImageGenerator returns the image generation backend, if configured.
func (r *Registry) ImageGenerator() (domain.ImageGenerator, bool) {
	return r.images, r.images != nil
}

func order(first domain.Provider) []domain.Provider {
	if !first.Valid() {
		first = domain.DefaultProvider
	}
	return []domain.Provider{first, first.Other()}
}
