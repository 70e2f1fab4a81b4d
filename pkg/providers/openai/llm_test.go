package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/airwave-labs/stationd/pkg/resilience"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatServer(t *testing.T, reply string, capture *[]message) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if capture != nil {
			*capture = payload.Messages
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": reply}},
			},
		})
	}))
}

func TestReplyStripsThinkBlocks(t *testing.T) {
	srv := chatServer(t, "<think>band conditions are good so be chatty</think>Good copy, signal is five nine.", nil)
	defer srv.Close()

	r := NewResponder(Config{Model: "qwen3", BaseURL: srv.URL}, discardLogger())
	got, err := r.Reply(context.Background(), "how do you copy?")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if got != "Good copy, signal is five nine." {
		t.Fatalf("reasoning block leaked: %q", got)
	}
}

func TestReplyPrependsNoThink(t *testing.T) {
	var seen []message
	srv := chatServer(t, "ok", &seen)
	defer srv.Close()

	r := NewResponder(Config{Model: "qwen3", BaseURL: srv.URL, NoThink: true}, discardLogger())
	if _, err := r.Reply(context.Background(), "hello"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	last := seen[len(seen)-1]
	if last.Content != "/no_think\nhello" {
		t.Fatalf("got user content %q", last.Content)
	}
}

func TestHistoryTrimKeepsSystemPrompt(t *testing.T) {
	var seen []message
	srv := chatServer(t, "ack", &seen)
	defer srv.Close()

	r := NewResponder(Config{
		Model:        "qwen3",
		BaseURL:      srv.URL,
		SystemPrompt: "you are a radio station",
		MaxHistory:   2,
	}, discardLogger())

	for i := 0; i < 8; i++ {
		if _, err := r.Reply(context.Background(), "turn"); err != nil {
			t.Fatalf("reply %d: %v", i, err)
		}
	}

	if seen[0].Role != "system" || seen[0].Content != "you are a radio station" {
		t.Fatalf("system prompt lost after trim: %+v", seen[0])
	}
	// system prompt plus at most MaxHistory pairs plus the new user turn
	if len(seen) > 1+2*2+1 {
		t.Fatalf("history not trimmed: %d messages", len(seen))
	}
}

func TestRateLimitSurfacesTyped(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "slow down")
	}))
	defer srv.Close()

	r := NewResponder(Config{Model: "gpt-4o-mini", BaseURL: srv.URL}, discardLogger())
	_, err := r.Reply(context.Background(), "hello there")
	if err == nil {
		t.Fatalf("expected rate limit error")
	}
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected typed rate limit error, got %v", err)
	}
}
