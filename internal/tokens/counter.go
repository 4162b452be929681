// Package tokens estimates prompt sizes with tiktoken encodings.
package tokens

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens with the tiktoken encoding that matches a model.
// Codecs are loaded lazily and cached by encoding.
type Counter struct {
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec

	// CharsPerToken is used when no codec can be loaded (default: 4)
	CharsPerToken float64
}

// NewCounter creates a new token counter.
func NewCounter() *Counter {
	return &Counter{
		codecs:        make(map[tokenizer.Encoding]tokenizer.Codec),
		CharsPerToken: 4.0,
	}
}

// Count returns the number of tokens text occupies for model. If the
// encoding cannot be loaded the count is estimated from its length.
func (c *Counter) Count(model, text string) int {
	if text == "" {
		return 0
	}

	codec, err := c.codec(encodingFor(model))
	if err != nil {
		return c.Estimate(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return c.Estimate(text)
	}
	return len(ids)
}

// Estimate approximates a token count from character length.
func (c *Counter) Estimate(text string) int {
	if text == "" {
		return 0
	}
	n := int(float64(len(text)) / c.CharsPerToken)
	if n == 0 {
		n = 1
	}
	return n
}

func (c *Counter) codec(enc tokenizer.Encoding) (tokenizer.Codec, error) {
	c.mu.RLock()
	if cached, ok := c.codecs[enc]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.codecs[enc] = codec
	c.mu.Unlock()
	return codec, nil
}

// encodingFor maps model names to encodings.
//
// - O200kBase: GPT-4o, GPT-4.1, O-series and unknown models (Gemini included)
// - Cl100kBase: GPT-4, GPT-3.5-turbo
func encodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}
