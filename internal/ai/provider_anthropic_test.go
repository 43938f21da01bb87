package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewAnthropicProvider_EmptyKey(t *testing.T) {
	_, err := NewAnthropicProvider("")
	if err == nil {
		t.Fatal("NewAnthropicProvider() should return error for empty key")
	}
}

func TestAnthropicProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("unexpected x-api-key: %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("unexpected anthropic-version: %s", r.Header.Get("anthropic-version"))
		}

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)

		if body["model"] != "claude-sonnet-4-6" {
			t.Errorf("model = %v, want claude-sonnet-4-6", body["model"])
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{
				{"type": "text", "text": "Claude response"},
			},
			"model": "claude-sonnet-4-6",
			"usage": map[string]int{
				"input_tokens":  12,
				"output_tokens": 8,
			},
		})
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider("test-key", WithAnthropicBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	resp, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
		Task:     TaskSimulation,
	})

	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Claude response" {
		t.Errorf("content = %q, want %q", resp.Content, "Claude response")
	}
	if resp.InputTokens != 12 {
		t.Errorf("input_tokens = %d, want 12", resp.InputTokens)
	}
	if resp.OutputTokens != 8 {
		t.Errorf("output_tokens = %d, want 8", resp.OutputTokens)
	}
}

func TestAnthropicProvider_Complete_JSONOnly(t *testing.T) {
	var receivedBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&receivedBody)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{
				{"type": "text", "text": `{"ok":true}`},
			},
			"model": "claude-haiku-4-5-20251001",
			"usage": map[string]int{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider("test-key", WithAnthropicBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "You write quizzes."},
			{Role: "user", Content: "make one"},
		},
		Task:     TaskQuizGen,
		JSONOnly: true,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	system, _ := receivedBody["system"].(string)
	if !strings.Contains(system, "JSON") {
		t.Errorf("system prompt should carry the JSON-only instruction, got %q", system)
	}
	if receivedBody["model"] != "claude-haiku-4-5-20251001" {
		t.Errorf("model = %v, want haiku default for quiz generation", receivedBody["model"])
	}
}

func TestAnthropicProvider_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider("test-key", WithAnthropicBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete() should return error on non-200 status")
	}
}

func TestAnthropicProvider_Complete_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{},
			"model":   "claude-haiku-4-5-20251001",
			"usage":   map[string]int{"input_tokens": 1, "output_tokens": 0},
		})
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider("test-key", WithAnthropicBaseURL(server.URL))

	_, err := provider.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete() should return error when content is empty")
	}
}
