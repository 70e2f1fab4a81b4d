package stt

import "context"

// Transcriber defines the contract for any STT vendor implementation.
type Transcriber interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Transcribe converts one recorded utterance to text. A blank result
	// means nothing intelligible was heard; that is not an error.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}
