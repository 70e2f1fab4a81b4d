package tts

import "context"

// Synthesizer defines the contract for any TTS vendor implementation.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Synthesize renders text as mono 16-bit PCM at targetRate.
	Synthesize(ctx context.Context, text string, targetRate int) ([]int16, error)
}
