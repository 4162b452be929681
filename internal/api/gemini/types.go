package gemini

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

// GenerateContentRequest is the body of a models/{model}:generateContent call.
type GenerateContentRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is one conversational turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a piece of a turn: either text or inline binary data.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inline_data,omitempty"`
}

// Blob is inline base64 data with its MIME type.
type Blob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// GenerationConfig controls sampling.
type GenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
}

// GenerateContentResponse is the response to a generateContent call.
type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
	ModelVersion   string          `json:"modelVersion,omitempty"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        int     `json:"index"`
}

// PromptFeedback reports whether the prompt itself was blocked.
type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// UsageMetadata reports token usage.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Text concatenates the text parts of the first candidate.
func (r *GenerateContentResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// ErrorResponse is the error envelope returned by the Gemini API.
type ErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ParseErrorResponse decodes an error envelope. It returns nil when the body
// is not one.
func ParseErrorResponse(body []byte) (*ErrorResponse, error) {
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Error.Message == "" && resp.Error.Status == "" {
		return nil, nil
	}
	return &resp, nil
}

// ToCanonical converts the envelope to a domain.APIError.
func (e *ErrorResponse) ToCanonical(statusCode int) *domain.APIError {
	errType := domain.ErrorTypeForStatus(statusCode)
	switch e.Error.Status {
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION", "NOT_FOUND":
		errType = domain.ErrorTypeInvalidRequest
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		errType = domain.ErrorTypeAuthentication
	case "RESOURCE_EXHAUSTED":
		errType = domain.ErrorTypeRateLimit
	case "UNAVAILABLE", "DEADLINE_EXCEEDED":
		errType = domain.ErrorTypeUnavailable
	}
	if statusCode == 0 {
		statusCode = e.Error.Code
	}
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}

	return domain.NewAPIError(errType, e.Error.Message).
		WithProvider(domain.ProviderGemini).
		WithStatusCode(statusCode)
}
