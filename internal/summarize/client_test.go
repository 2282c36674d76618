package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voice-notes/internal/domain"
)

// TestClientComplete checks request shape and answer extraction.
func TestClientComplete(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": " The summary. "}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model")
	got, err := client.Complete(context.Background(), "the transcript", domain.SummaryLengthShort, "meeting")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if got != "The summary." {
		t.Fatalf("answer = %q", got)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody.Model != "test-model" || len(gotBody.Messages) != 2 {
		t.Fatalf("request = %+v", gotBody)
	}
	if !strings.Contains(gotBody.Messages[0].Content, "at most 1") {
		t.Fatalf("instruction = %q, want short length", gotBody.Messages[0].Content)
	}
	if !strings.Contains(gotBody.Messages[0].Content, "meeting") {
		t.Fatalf("instruction = %q, want mode hint", gotBody.Messages[0].Content)
	}
	if gotBody.Messages[1].Content != "the transcript" {
		t.Fatalf("user message = %q", gotBody.Messages[1].Content)
	}
}

// TestClientCompleteProviderError checks error message propagation.
func TestClientCompleteProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limited"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "")
	_, err := client.Complete(context.Background(), "text", domain.SummaryLengthMedium, "")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("error = %v, want rate limited message", err)
	}
}

// TestClientCompleteMissingKey checks the unconfigured-client sentinel.
func TestClientCompleteMissingKey(t *testing.T) {
	client := NewClient("https://api.example.com", "", "")
	_, err := client.Complete(context.Background(), "text", domain.SummaryLengthMedium, "")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("error = %v, want ErrNoAPIKey", err)
	}
}
