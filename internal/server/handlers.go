package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/moderation"
)

// MaxTextLength is the longest text submission accepted, in characters.
const MaxTextLength = 10000

// maxBodyBytes caps request bodies; data URIs for 5MB images fit.
const maxBodyBytes = 8 << 20

var imageRefPattern = regexp.MustCompile(`^(https?://.+|data:image/.+;base64,.+)$`)

// Moderator is the moderation service surface used by the handlers.
type Moderator interface {
	Moderate(ctx context.Context, content string, contentType domain.ContentType, provider domain.Provider) (*domain.ModerationResult, error)
	Invalidate(ctx context.Context, content string, contentType domain.ContentType, provider domain.Provider)
	Stats() moderation.Stats
}

// ImageGenerator renders images on request.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.ImageResult, error)
}

// ModerationRequest is the body of POST /v1/moderations and
// DELETE /v1/moderations/cache.
type ModerationRequest struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
	AIProvider  string `json:"aiProvider,omitempty"`
}

type handlers struct {
	moderator Moderator
	images    ImageGenerator
	checks    map[string]ReadinessCheck
	logger    *slog.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) moderate(w http.ResponseWriter, r *http.Request) {
	var req ModerationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	contentType, provider, err := validateModeration(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	AddLogField(r.Context(), "content_type", string(contentType))
	AddLogField(r.Context(), "ai_provider", string(provider))

	result, err := h.moderator.Moderate(r.Context(), req.Content, contentType, provider)
	if err != nil {
		writeError(w, r, err)
		return
	}

	AddLogField(r.Context(), "decision", string(result.Decision))
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.moderator.Stats())
}

func (h *handlers) invalidate(w http.ResponseWriter, r *http.Request) {
	var req ModerationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	contentType, provider, err := validateModeration(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.moderator.Invalidate(r.Context(), req.Content, contentType, provider)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) generateImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeError(w, r, fmt.Errorf("image generation: %w", domain.ErrProviderUnavailable))
		return
	}

	var req domain.ImageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.images.GenerateImage(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidRequest("request body must be a JSON object").WithCause(err)
	}
	return nil
}

func validateModeration(req ModerationRequest) (domain.ContentType, domain.Provider, error) {
	contentType := domain.ContentType(req.ContentType)
	if !contentType.Valid() {
		return "", "", domain.ErrInvalidRequest("contentType must be either text or image").WithParam("contentType")
	}

	switch contentType {
	case domain.ContentTypeText:
		n := utf8.RuneCountInString(req.Content)
		if strings.TrimSpace(req.Content) == "" {
			return "", "", domain.ErrInvalidRequest("content is required").WithParam("content")
		}
		if n > MaxTextLength {
			return "", "", domain.ErrInvalidRequest(fmt.Sprintf("text content must be at most %d characters", MaxTextLength)).WithParam("content")
		}
	case domain.ContentTypeImage:
		if !imageRefPattern.MatchString(req.Content) {
			return "", "", domain.ErrInvalidRequest("image content must be an http(s) URL or a base64 image data URI").WithParam("content")
		}
	}

	provider, err := domain.ParseProvider(req.AIProvider)
	if err != nil {
		return "", "", err
	}
	return contentType, provider, nil
}

type errorBody struct {
	Error *domain.APIError `json:"error"`
}

// writeError maps err to a status code and a JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	var apiErr *domain.APIError
	switch {
	case errors.Is(err, domain.ErrProcessing):
		apiErr = domain.NewAPIError(domain.ErrorTypeServer, "Failed to process moderation request")
	case errors.As(err, &apiErr):
	case errors.Is(err, domain.ErrProviderUnavailable):
		apiErr = domain.NewAPIError(domain.ErrorTypeServer, "image generation is not configured").
			WithStatusCode(http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		apiErr = domain.NewAPIError(domain.ErrorTypeServer, "request timed out").
			WithStatusCode(http.StatusGatewayTimeout)
	default:
		apiErr = domain.NewAPIError(domain.ErrorTypeServer, "internal server error")
	}

	status := apiErr.HTTPStatusCode()
	writeJSON(w, status, errorBody{Error: apiErr})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
