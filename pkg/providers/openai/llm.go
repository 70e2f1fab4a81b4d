// Package openai implements the reply adapter against any
// chat-completions-compatible endpoint, including a local Ollama server.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/airwave-labs/stationd/pkg/adapters/llm"
	"github.com/airwave-labs/stationd/pkg/errorsx"
	"github.com/airwave-labs/stationd/pkg/logging"
	"github.com/airwave-labs/stationd/pkg/resilience"
)

var _ llm.Responder = (*Responder)(nil)

// Reasoning models leak chain-of-thought in <think> blocks; never put that
// on the air.
var thinkRE = regexp.MustCompile(`(?s)<think>.*?</think>`)

type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	MaxHistory   int // user/assistant pairs kept across turns
	NoThink      bool
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Responder keeps a rolling conversation history so the station can hold a
// multi-exchange QSO. One instance serves one session; Reply is serialized
// by the caller but guarded anyway.
type Responder struct {
	cfg    Config
	client *http.Client
	retry  resilience.RetryPolicy
	logger *slog.Logger

	mu       sync.Mutex
	messages []message
}

func NewResponder(cfg Config, logger *slog.Logger) *Responder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 10
	}
	r := &Responder{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		retry:  resilience.NewRetryPolicy(2, 200*time.Millisecond),
		logger: logging.NewComponentLogger(logger, "openai_llm"),
	}
	r.messages = r.seedMessages()
	return r
}

func (r *Responder) seedMessages() []message {
	if r.cfg.SystemPrompt == "" {
		return nil
	}
	return []message{{Role: "system", Content: r.cfg.SystemPrompt}}
}

func (r *Responder) Name() string { return "openai" }

// Reset clears the conversation history back to the system prompt.
func (r *Responder) Reset() {
	r.mu.Lock()
	r.messages = r.seedMessages()
	r.mu.Unlock()
}

func (r *Responder) Reply(ctx context.Context, text string) (string, error) {
	content := text
	if r.cfg.NoThink {
		content = "/no_think\n" + content
	}

	r.mu.Lock()
	r.messages = append(r.messages, message{Role: "user", Content: content})
	r.trimHistoryLocked()
	msgs := make([]message, len(r.messages))
	copy(msgs, r.messages)
	r.mu.Unlock()

	var raw string
	err := r.retry.Do(func() error {
		var err error
		raw, err = r.complete(ctx, msgs)
		return err
	})
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}

	r.mu.Lock()
	r.messages = append(r.messages, message{Role: "assistant", Content: raw})
	r.mu.Unlock()

	cleaned := strings.TrimSpace(thinkRE.ReplaceAllString(raw, ""))
	if cleaned != strings.TrimSpace(raw) {
		r.logger.Debug("stripped reasoning block", "chars_removed", len(raw)-len(cleaned))
	}
	return cleaned, nil
}

// trimHistoryLocked keeps the system prompt plus the last MaxHistory
// exchanges. Caller holds mu.
func (r *Responder) trimHistoryLocked() {
	keep := r.cfg.MaxHistory * 2
	base := 0
	if len(r.messages) > 0 && r.messages[0].Role == "system" {
		base = 1
	}
	if len(r.messages)-base <= keep {
		return
	}
	trimmed := make([]message, 0, base+keep)
	trimmed = append(trimmed, r.messages[:base]...)
	trimmed = append(trimmed, r.messages[len(r.messages)-keep:]...)
	r.messages = trimmed
}

func (r *Responder) complete(ctx context.Context, msgs []message) (string, error) {
	payload := map[string]any{
		"model":    r.cfg.Model,
		"messages": msgs,
	}
	if r.cfg.Temperature > 0 {
		payload["temperature"] = r.cfg.Temperature
	}
	if r.cfg.MaxTokens > 0 {
		payload["max_tokens"] = r.cfg.MaxTokens
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(resp.Body)
		return "", resilience.RateLimitError{Provider: "openai", Message: string(msg)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat completion failed: %s: %s", resp.Status, string(msg))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}
