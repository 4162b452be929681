// Package testutil holds helpers shared by provider tests.
package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// credentialHeaders are removed from interactions before they are saved.
var credentialHeaders = []string{"Authorization", "X-Goog-Api-Key", "Openai-Organization"}

// Recording reports whether cassettes are being re-recorded against the
// live APIs (VCR_MODE=record).
func Recording() bool {
	return os.Getenv("VCR_MODE") == "record"
}

// NewVCRRecorder creates a recorder backed by testdata/fixtures/<cassetteName>.yaml.
// Requests are matched on method and URL; bodies are ignored.
func NewVCRRecorder(t *testing.T, cassetteName string) (*recorder.Recorder, func()) {
	t.Helper()

	mode := recorder.ModeReplaying
	if Recording() {
		mode = recorder.ModeRecording
	}

	cassettePath := filepath.Join("testdata", "fixtures", cassetteName)

	r, err := recorder.NewAsMode(cassettePath, mode, nil)
	if err != nil {
		t.Fatalf("Failed to create VCR recorder: %v", err)
	}

	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		return r.Method == i.Method && r.URL.String() == i.URL
	})

	r.AddFilter(func(i *cassette.Interaction) error {
		for _, h := range credentialHeaders {
			delete(i.Request.Headers, h)
		}
		return nil
	})

	cleanup := func() {
		if err := r.Stop(); err != nil {
			t.Errorf("Failed to stop VCR recorder: %v", err)
		}
	}

	return r, cleanup
}

// VCRHTTPClient returns an HTTP client configured to use the VCR recorder
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{
		Transport: r,
	}
}
