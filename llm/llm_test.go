package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"listing_scrooper/config"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"price\":\"$750,000\"}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(config.LLMConfig{APIKey: "sk-test", BaseURL: srv.URL + "/", Timeout: time.Second})
	out, err := c.Complete(context.Background(), Request{System: "sys", User: "html", JSON: true, MaxTokens: 500})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if out != `{"price":"$750,000"}` {
		t.Fatalf("unexpected output %q", out)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	rf, ok := got["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", got["response_format"])
	}
	if msgs, ok := got["messages"].([]any); !ok || len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %v", got["messages"])
	}
}

func TestOpenAIClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer empty" {
			w.Write([]byte(`{"choices":[]}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	bad := NewOpenAIClient(config.LLMConfig{APIKey: "nope", BaseURL: srv.URL})
	if _, err := bad.Complete(context.Background(), Request{User: "x"}); err == nil {
		t.Fatalf("expected error on 401")
	}

	empty := NewOpenAIClient(config.LLMConfig{APIKey: "empty", BaseURL: srv.URL})
	if _, err := empty.Complete(context.Background(), Request{User: "x"}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestNew_NoKeyDisables(t *testing.T) {
	c, err := New(context.Background(), config.LLMConfig{Provider: "openai"})
	if err != nil || c != nil {
		t.Fatalf("expected nil client without key, got %v %v", c, err)
	}

	c, err = New(context.Background(), config.LLMConfig{Provider: "openai", APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.(*OpenAIClient); !ok {
		t.Fatalf("expected OpenAIClient, got %T", c)
	}
}
