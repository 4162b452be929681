package server

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"time"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type readinessResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]checkResult `json:"checks"`
}

// ready runs every check and answers 503 if any of them fails.
func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	names := slices.Sorted(maps.Keys(h.checks))

	resp := readinessResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]checkResult, len(names)),
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := h.checks[name](ctx)
		cancel()

		if err != nil {
			resp.Status = "not_ready"
			resp.Checks[name] = checkResult{Status: "error", Message: err.Error()}
			AddLogField(r.Context(), "failed_check", name)
			continue
		}
		resp.Checks[name] = checkResult{Status: "ok"}
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
