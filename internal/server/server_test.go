package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/chathistory"
	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/reply"
	"github.com/wotyapustoy-lab/promt-protocol-chat/llm"
	"github.com/wotyapustoy-lab/promt-protocol-chat/persona"
	"github.com/wotyapustoy-lab/promt-protocol-chat/providers/hf"
	"github.com/wotyapustoy-lab/promt-protocol-chat/providers/openai"
)

type fakeImages struct {
	uri string
	err error
}

func (f fakeImages) Generate(_ context.Context, _ string) (string, error) { return f.uri, f.err }

type fakePoster struct {
	err    error
	posted []int64
	texts  []string
}

func (f *fakePoster) PostReply(_ context.Context, text string, inReplyTo int64) error {
	if f.err != nil {
		return f.err
	}
	f.posted = append(f.posted, inReplyTo)
	f.texts = append(f.texts, text)
	return nil
}

func newTestServer(t *testing.T, upstream string, images ImageClient, poster ReplyPoster) (*Server, *chathistory.Buffer) {
	t.Helper()
	client, err := openai.New(upstream, "key", "")
	if err != nil {
		t.Fatal(err)
	}
	history := chathistory.New(10)
	srv := New(
		Config{Persona: persona.Default("IURIIdev"), BotHandle: "promtaios"},
		Deps{
			History: history,
			Chat:    &reply.Generator{Client: client, Model: "gpt-5-chat-latest", MaxTokens: 300},
			Mention: &reply.Generator{Client: client, Model: "gpt-5-chat-latest", MaxTokens: 200, Fallback: ">_ signal interference."},
			Images:  images,
			Poster:  poster,
		},
	)
	return srv, history
}

func completionStub(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": content}}},
		})
	}))
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatEndToEnd(t *testing.T) {
	upstream := completionStub(t, "hi")
	defer upstream.Close()
	srv, history := newTestServer(t, upstream.URL, fakeImages{}, &fakePoster{})

	rec := postJSON(t, srv.Router(), "/api/chat", map[string]string{"message": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Reply != "hi" {
		t.Fatalf("reply = %q, want %q", out.Reply, "hi")
	}

	turns := history.Snapshot()
	if len(turns) != 2 {
		t.Fatalf("buffer holds %d turns, want 2", len(turns))
	}
	if turns[0].Role != llm.RoleUser || turns[0].Content != "hello" {
		t.Fatalf("turn[0] = %+v", turns[0])
	}
	if turns[1].Role != llm.RoleAssistant || turns[1].Content != "hi" {
		t.Fatalf("turn[1] = %+v", turns[1])
	}
}

// The buffer is deliberately shared across callers: two requests from
// different "users" land in the same conversation.
func TestChatBufferIsSharedAcrossCallers(t *testing.T) {
	upstream := completionStub(t, "ok")
	defer upstream.Close()
	srv, history := newTestServer(t, upstream.URL, fakeImages{}, &fakePoster{})

	postJSON(t, srv.Router(), "/api/chat", map[string]string{"message": "first caller"})
	postJSON(t, srv.Router(), "/api/chat", map[string]string{"message": "second caller"})
	if got := history.Len(); got != 4 {
		t.Fatalf("buffer holds %d turns, want 4 (one shared history)", got)
	}
}

func TestChatUpstreamFailureYieldsFallback(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()
	srv, _ := newTestServer(t, upstream.URL, fakeImages{}, &fakePoster{})

	rec := postJSON(t, srv.Router(), "/api/chat", map[string]string{"message": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with fallback body", rec.Code)
	}
	var out chatResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Reply != reply.DefaultFallback {
		t.Fatalf("reply = %q, want fallback", out.Reply)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	upstream := completionStub(t, "hi")
	defer upstream.Close()
	srv, history := newTestServer(t, upstream.URL, fakeImages{}, &fakePoster{})

	rec := postJSON(t, srv.Router(), "/api/chat", map[string]string{"message": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if history.Len() != 0 {
		t.Fatal("rejected message must not touch the buffer")
	}
}

func TestResetClearsBuffer(t *testing.T) {
	upstream := completionStub(t, "hi")
	defer upstream.Close()
	srv, history := newTestServer(t, upstream.URL, fakeImages{}, &fakePoster{})

	postJSON(t, srv.Router(), "/api/chat", map[string]string{"message": "hello"})
	rec := postJSON(t, srv.Router(), "/api/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), resetReply) {
		t.Fatalf("body = %q, want confirmation", rec.Body.String())
	}
	if history.Len() != 0 {
		t.Fatalf("buffer holds %d turns after reset, want 0", history.Len())
	}
}

func TestImageSuccess(t *testing.T) {
	srv, _ := newTestServer(t, "http://unused", fakeImages{uri: "data:image/jpeg;base64,AAA"}, &fakePoster{})
	rec := postJSON(t, srv.Router(), "/api/image", map[string]string{"prompt": "glitch"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var out imageResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Image != "data:image/jpeg;base64,AAA" || !strings.Contains(out.Message, "visual echo") {
		t.Fatalf("response = %+v", out)
	}
}

func TestImageMissingCredentialIs400(t *testing.T) {
	srv, _ := newTestServer(t, "http://unused", fakeImages{err: hf.ErrMissingToken}, &fakePoster{})
	rec := postJSON(t, srv.Router(), "/api/image", map[string]string{"prompt": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "HF_TOKEN missing") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestImageUpstreamStatusIs500WithCode(t *testing.T) {
	srv, _ := newTestServer(t, "http://unused", fakeImages{err: &hf.StatusError{Code: 500}}, &fakePoster{})
	rec := postJSON(t, srv.Router(), "/api/image", map[string]string{"prompt": "x"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "generation failed: 500") {
		t.Fatalf("body = %q, want upstream status embedded", rec.Body.String())
	}
}

func TestImageGenericFailureIs500(t *testing.T) {
	srv, _ := newTestServer(t, "http://unused", fakeImages{err: errors.New("conn refused")}, &fakePoster{})
	rec := postJSON(t, srv.Router(), "/api/image", map[string]string{"prompt": "x"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "image generation error") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestWebhookIgnoresNonTweetPayload(t *testing.T) {
	poster := &fakePoster{}
	srv, _ := newTestServer(t, "http://unused", fakeImages{}, poster)
	rec := postJSON(t, srv.Router(), "/x/webhook", map[string]any{"follow_events": []any{}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(poster.posted) != 0 {
		t.Fatal("no reply must be posted for non-tweet payloads")
	}
}

func webhookBody(author, text, id string) map[string]any {
	return map[string]any{
		"tweet_create_events": []map[string]any{{
			"id_str": id,
			"text":   text,
			"user":   map[string]any{"screen_name": author},
		}},
	}
}

func TestWebhookIgnoresSelfAndNonMentions(t *testing.T) {
	upstream := completionStub(t, "reply")
	defer upstream.Close()
	poster := &fakePoster{}
	srv, _ := newTestServer(t, upstream.URL, fakeImages{}, poster)

	for _, body := range []map[string]any{
		webhookBody("promtaios", "@promtaios talking to myself", "1"),
		webhookBody("alice", "no mention here", "2"),
	} {
		rec := postJSON(t, srv.Router(), "/x/webhook", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}
	if len(poster.posted) != 0 {
		t.Fatalf("posted = %v, want none", poster.posted)
	}
}

func TestWebhookRepliesToMention(t *testing.T) {
	upstream := completionStub(t, ">_ hello alice")
	defer upstream.Close()
	poster := &fakePoster{}
	srv, _ := newTestServer(t, upstream.URL, fakeImages{}, poster)

	rec := postJSON(t, srv.Router(), "/x/webhook", webhookBody("alice", "hey @promtaios", "42"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(poster.posted) != 1 || poster.posted[0] != 42 {
		t.Fatalf("posted = %v, want [42]", poster.posted)
	}
	if poster.texts[0] != ">_ hello alice" {
		t.Fatalf("text = %q", poster.texts[0])
	}
}

func TestWebhookPostFailureIs500(t *testing.T) {
	upstream := completionStub(t, "reply")
	defer upstream.Close()
	poster := &fakePoster{err: errors.New("denied")}
	srv, _ := newTestServer(t, upstream.URL, fakeImages{}, poster)

	rec := postJSON(t, srv.Router(), "/x/webhook", webhookBody("alice", "hey @promtaios", "42"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestRootLiveness(t *testing.T) {
	srv, _ := newTestServer(t, "http://unused", fakeImages{}, &fakePoster{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "PROMT neural backend active") {
		t.Fatalf("root = %d %q", rec.Code, rec.Body.String())
	}
}
