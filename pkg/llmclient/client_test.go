package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("expected bearer token, got %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Fatalf("expected model gpt-4o-mini, got %q", req.Model)
		}
		if req.Temperature != 0.1 {
			t.Fatalf("expected temperature 0.1, got %v", req.Temperature)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
			t.Fatalf("expected json_object response format, got %+v", req.ResponseFormat)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Fatalf("unexpected messages %+v", req.Messages)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"bank_name\":\"IDBI\"}"}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/v1/", "sk-test", "gpt-4o-mini", 0.1)
	got, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"bank_name":"IDBI"}` {
		t.Fatalf("unexpected completion %q", got)
	}
}

func TestCompleteJSONErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "sk", "m", 0).CompleteJSON(context.Background(), "", "hi")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected rate limited error, got %v", err)
	}
}

func TestCompleteJSONNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	if _, err := NewClient(server.URL, "sk", "m", 0).CompleteJSON(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestCompleteJSONNotConfigured(t *testing.T) {
	client := NewClient("", "  ", "m", 0)
	if client.Configured() {
		t.Fatal("expected client without key to be unconfigured")
	}
	if _, err := client.CompleteJSON(context.Background(), "", "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
