package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wotyapustoy-lab/promt-protocol-chat/llm"
)

func TestChatExtractsFirstChoice(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("auth header = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"X"}}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "key", "")
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Chat(context.Background(), llm.Request{
		Model:     "gpt-5-chat-latest",
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
		MaxTokens: 300,
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Text != "X" {
		t.Fatalf("Text = %q, want %q", res.Text, "X")
	}
	if res.Usage.TotalTokens != 4 {
		t.Fatalf("TotalTokens = %d, want 4", res.Usage.TotalTokens)
	}
	if gotBody["model"] != "gpt-5-chat-latest" {
		t.Fatalf("request model = %v", gotBody["model"])
	}
	if gotBody["max_completion_tokens"] != float64(300) {
		t.Fatalf("request max_completion_tokens = %v", gotBody["max_completion_tokens"])
	}
}

func TestChatEmptyResponseIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL, "key", "")
	if _, err := c.Chat(context.Background(), llm.Request{Model: "m"}); err == nil {
		t.Fatal("want error for empty choices")
	}
}

func TestChatNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream sad"}}`))
	}))
	defer srv.Close()

	c, _ := New(srv.URL, "key", "")
	_, err := c.Chat(context.Background(), llm.Request{Model: "m"})
	if err == nil {
		t.Fatal("want error for 502")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "upstream sad") {
		t.Fatalf("error = %v, want status and upstream message", err)
	}
}

func TestNewRejectsBadProxyURL(t *testing.T) {
	if _, err := New("", "key", "://nope"); err == nil {
		t.Fatal("want error for invalid proxy url")
	}
}
