package llm

import "context"

// Responder defines the contract for any reply-generation vendor
// implementation.
type Responder interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Reply produces a conversational response to an incoming message.
	// Implementations may keep their own conversation history.
	Reply(ctx context.Context, text string) (string, error)
}
