// Package mock provides offline stand-ins for the vendor adapters, used in
// tests and dry runs without network access or API keys.
package mock

import (
	"context"
	"math"

	"github.com/airwave-labs/stationd/pkg/adapters/llm"
	"github.com/airwave-labs/stationd/pkg/adapters/stt"
	"github.com/airwave-labs/stationd/pkg/adapters/tts"
)

var (
	_ stt.Transcriber = (*STT)(nil)
	_ tts.Synthesizer = (*TTS)(nil)
	_ llm.Responder   = (*LLM)(nil)
)

type STTConfig struct {
	Transcript string
}

type STT struct {
	cfg STTConfig
}

func NewSTT(cfg STTConfig) *STT {
	if cfg.Transcript == "" {
		cfg.Transcript = "mock transcript"
	}
	return &STT{cfg: cfg}
}

func (s *STT) Name() string { return "mock_stt" }

func (s *STT) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	return s.cfg.Transcript, nil
}

type TTSConfig struct {
	ToneHz      float64
	ToneSeconds float64
}

// TTS renders every request as a fixed-length sine tone, enough to exercise
// the transmit path end to end.
type TTS struct {
	cfg TTSConfig
}

func NewTTS(cfg TTSConfig) *TTS {
	if cfg.ToneHz <= 0 {
		cfg.ToneHz = 440
	}
	if cfg.ToneSeconds <= 0 {
		cfg.ToneSeconds = 1
	}
	return &TTS{cfg: cfg}
}

func (t *TTS) Name() string { return "mock_tts" }

func (t *TTS) Synthesize(ctx context.Context, text string, targetRate int) ([]int16, error) {
	n := int(t.cfg.ToneSeconds * float64(targetRate))
	out := make([]int16, n)
	for i := range out {
		v := math.Sin(2 * math.Pi * t.cfg.ToneHz * float64(i) / float64(targetRate))
		out[i] = int16(v * 0.9 * 32767)
	}
	return out, nil
}

type LLMConfig struct {
	ResponseText string
	Echo         bool
}

type LLM struct {
	cfg LLMConfig
}

func NewLLM(cfg LLMConfig) *LLM {
	if cfg.ResponseText == "" && !cfg.Echo {
		cfg.ResponseText = "mock response"
	}
	return &LLM{cfg: cfg}
}

func (l *LLM) Name() string { return "mock_llm" }

func (l *LLM) Reply(ctx context.Context, text string) (string, error) {
	if l.cfg.Echo {
		return text, nil
	}
	return l.cfg.ResponseText, nil
}
