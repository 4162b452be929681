package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/moderation"
)

type moderateCall struct {
	content     string
	contentType domain.ContentType
	provider    domain.Provider
}

type fakeModerator struct {
	mu          sync.Mutex
	calls       []moderateCall
	invalidated []moderateCall
	result      *domain.ModerationResult
	err         error
}

func (f *fakeModerator) Moderate(ctx context.Context, content string, ct domain.ContentType, p domain.Provider) (*domain.ModerationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, moderateCall{content, ct, p})
	return f.result, f.err
}

func (f *fakeModerator) Invalidate(ctx context.Context, content string, ct domain.ContentType, p domain.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, moderateCall{content, ct, p})
}

func (f *fakeModerator) Stats() moderation.Stats {
	return moderation.Stats{TotalRequests: 3, CachedRequests: 1, EstimatedCostSavings: 0.005}
}

type fakeImages struct {
	result *domain.ImageResult
	err    error
}

func (f *fakeImages) GenerateImage(ctx context.Context, req domain.ImageRequest) (*domain.ImageResult, error) {
	return f.result, f.err
}

func newTestServer(mod Moderator, images ImageGenerator) *Server {
	return New(Config{
		RequestTimeout: time.Second,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Moderator:      mod,
		Images:         images,
	})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	var body struct {
		Error domain.APIError `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestModerate_Success(t *testing.T) {
	mod := &fakeModerator{result: &domain.ModerationResult{
		Decision:       domain.DecisionApproved,
		Reasoning:      "Content approved.",
		Classification: []string{"safe"},
		AIProvider:     domain.ProviderGemini,
	}}
	s := newTestServer(mod, nil)

	rec := do(t, s, http.MethodPost, "/v1/moderations", `{"content":"hello","contentType":"text","aiProvider":"gemini"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var got domain.ModerationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Decision != domain.DecisionApproved || got.AIProvider != domain.ProviderGemini {
		t.Errorf("result = %+v", got)
	}

	want := moderateCall{"hello", domain.ContentTypeText, domain.ProviderGemini}
	if len(mod.calls) != 1 || mod.calls[0] != want {
		t.Errorf("calls = %+v, want %+v", mod.calls, want)
	}
}

func TestModerate_DefaultsProvider(t *testing.T) {
	mod := &fakeModerator{result: &domain.ModerationResult{Decision: domain.DecisionApproved, Reasoning: "ok"}}
	s := newTestServer(mod, nil)

	rec := do(t, s, http.MethodPost, "/v1/moderations", `{"content":"https://cdn.example.com/a.png","contentType":"image"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if mod.calls[0].provider != domain.DefaultProvider {
		t.Errorf("provider = %q, want default", mod.calls[0].provider)
	}
}

func TestModerate_Validation(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantParam string
	}{
		{"not json", `content=hello`, ""},
		{"unknown field", `{"content":"hi","contentType":"text","extra":1}`, ""},
		{"bad content type", `{"content":"hi","contentType":"video"}`, "contentType"},
		{"empty text", `{"content":"   ","contentType":"text"}`, "content"},
		{"text too long", fmt.Sprintf(`{"content":%q,"contentType":"text"}`, strings.Repeat("a", MaxTextLength+1)), "content"},
		{"image not a reference", `{"content":"my cat","contentType":"image"}`, "content"},
		{"image data uri without base64", `{"content":"data:image/png,abc","contentType":"image"}`, "content"},
		{"bad provider", `{"content":"hi","contentType":"text","aiProvider":"anthropic"}`, "aiProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := &fakeModerator{}
			s := newTestServer(mod, nil)

			rec := do(t, s, http.MethodPost, "/v1/moderations", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
			}
			apiErr := decodeError(t, rec)
			if apiErr.Type != domain.ErrorTypeInvalidRequest || apiErr.Param != tt.wantParam {
				t.Errorf("error = %+v, want invalid_request on %q", apiErr, tt.wantParam)
			}
			if len(mod.calls) != 0 {
				t.Errorf("moderator called on invalid input")
			}
		})
	}
}

func TestModerate_TextAtLimit(t *testing.T) {
	mod := &fakeModerator{result: &domain.ModerationResult{Decision: domain.DecisionApproved, Reasoning: "ok"}}
	s := newTestServer(mod, nil)

	body := fmt.Sprintf(`{"content":%q,"contentType":"text"}`, strings.Repeat("é", MaxTextLength))
	if rec := do(t, s, http.MethodPost, "/v1/moderations", body); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for %d characters", rec.Code, MaxTextLength)
	}
}

func TestModerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   domain.ErrorType
		wantMsg    string
	}{
		{
			name:       "processing failure",
			err:        fmt.Errorf("%w: %w", domain.ErrProcessing, domain.ErrIncompleteResult),
			wantStatus: http.StatusInternalServerError,
			wantType:   domain.ErrorTypeServer,
			wantMsg:    "Failed to process moderation request",
		},
		{
			name:       "api error",
			err:        domain.ErrRateLimit("slow down"),
			wantStatus: http.StatusTooManyRequests,
			wantType:   domain.ErrorTypeRateLimit,
			wantMsg:    "slow down",
		},
		{
			name:       "deadline",
			err:        fmt.Errorf("analyze: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   domain.ErrorTypeServer,
			wantMsg:    "request timed out",
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   domain.ErrorTypeServer,
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeModerator{err: tt.err}, nil)

			rec := do(t, s, http.MethodPost, "/v1/moderations", `{"content":"hi","contentType":"text"}`)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			apiErr := decodeError(t, rec)
			if apiErr.Type != tt.wantType || apiErr.Message != tt.wantMsg {
				t.Errorf("error = %+v", apiErr)
			}
		})
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(&fakeModerator{}, nil)

	rec := do(t, s, http.MethodGet, "/v1/moderations/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got moderation.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalRequests != 3 || got.CachedRequests != 1 || got.EstimatedCostSavings != 0.005 {
		t.Errorf("stats = %+v", got)
	}
}

func TestInvalidate(t *testing.T) {
	mod := &fakeModerator{}
	s := newTestServer(mod, nil)

	rec := do(t, s, http.MethodDelete, "/v1/moderations/cache", `{"content":"hi","contentType":"text","aiProvider":"openai"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	want := moderateCall{"hi", domain.ContentTypeText, domain.ProviderOpenAI}
	if len(mod.invalidated) != 1 || mod.invalidated[0] != want {
		t.Errorf("invalidated = %+v", mod.invalidated)
	}
}

func TestGenerateImage(t *testing.T) {
	tests := []struct {
		name       string
		images     ImageGenerator
		wantStatus int
	}{
		{"success", &fakeImages{result: &domain.ImageResult{URL: "https://img.example.com/1.png"}}, http.StatusOK},
		{"content policy", &fakeImages{err: domain.ErrContentPolicy("nope")}, http.StatusBadRequest},
		{"not configured", nil, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeModerator{}, tt.images)
			rec := do(t, s, http.MethodPost, "/v1/images", `{"prompt":"a diagram"}`)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && !strings.Contains(rec.Body.String(), `"imageUrl":"https://img.example.com/1.png"`) {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&fakeModerator{}, nil)
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	down := errors.New("dial tcp 127.0.0.1:6379: connection refused")

	tests := []struct {
		name       string
		checks     map[string]ReadinessCheck
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checks",
			wantCode:   http.StatusOK,
			wantStatus: "ready",
			wantChecks: map[string]string{},
		},
		{
			name:       "cache up",
			checks:     map[string]ReadinessCheck{"cache": func(context.Context) error { return nil }},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
			wantChecks: map[string]string{"cache": "ok"},
		},
		{
			name: "cache down",
			checks: map[string]ReadinessCheck{
				"cache":     func(context.Context) error { return down },
				"providers": func(context.Context) error { return nil },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
			wantChecks: map[string]string{"cache": "error", "providers": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Config{
				Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
				Moderator: &fakeModerator{},
				Checks:    tt.checks,
			})
			rec := do(t, s, http.MethodGet, "/readyz", "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}

			var body struct {
				Status string `json:"status"`
				Checks map[string]struct {
					Status  string `json:"status"`
					Message string `json:"message"`
				} `json:"checks"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if len(body.Checks) != len(tt.wantChecks) {
				t.Errorf("checks = %+v, want %v", body.Checks, tt.wantChecks)
			}
			for name, want := range tt.wantChecks {
				if got := body.Checks[name].Status; got != want {
					t.Errorf("checks[%s] = %q, want %q", name, got, want)
				}
			}
			if c, ok := body.Checks["cache"]; ok && c.Status == "error" && c.Message != down.Error() {
				t.Errorf("cache message = %q", c.Message)
			}
		})
	}
}

func TestReadyz_ChecksHaveDeadline(t *testing.T) {
	s := New(Config{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Moderator: &fakeModerator{},
		Checks: map[string]ReadinessCheck{
			"cache": func(ctx context.Context) error {
				if _, ok := ctx.Deadline(); !ok {
					t.Error("check context has no deadline")
				}
				return nil
			},
		},
	})
	if rec := do(t, s, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"kept", "req-123_abc.def", true},
		{"unsafe replaced", "bad id\nwith newline", false},
		{"too long replaced", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			if got == "" || got != seen {
				t.Fatalf("header = %q, context = %q", got, seen)
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("request id = %q, want %q", got, tt.incoming)
			}
			if !tt.keep && got == tt.incoming {
				t.Errorf("request id %q was not replaced", got)
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestIDMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddLogField(r.Context(), "decision", "flagged")
		AddError(r.Context(), fmt.Errorf("upstream slow"))
		w.WriteHeader(http.StatusBadGateway)
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/moderations", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log %q: %v", buf.String(), err)
	}
	if entry["msg"] != "request completed" || entry["level"] != "ERROR" {
		t.Errorf("entry = %v", entry)
	}
	if entry["status"] != float64(http.StatusBadGateway) || entry["decision"] != "flagged" || entry["error"] != "upstream slow" {
		t.Errorf("entry = %v", entry)
	}
	if entry["request_id"] == "" {
		t.Error("request_id missing")
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	h := TimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !ok || time.Until(deadline) > 50*time.Millisecond {
		t.Errorf("deadline = %v, %v", deadline, ok)
	}

	ok = false
	TimeoutMiddleware(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = r.Context().Deadline()
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if ok {
		t.Error("zero timeout set a deadline")
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s := New(Config{
		Addr:      "127.0.0.1:0",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Moderator: &fakeModerator{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
