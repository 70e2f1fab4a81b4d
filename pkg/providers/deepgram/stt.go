// Package deepgram implements the STT and TTS adapters on the Deepgram
// REST APIs. Recorded utterances are short, so prerecorded endpoints fit
// better than the streaming ones.
package deepgram

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/airwave-labs/stationd/pkg/adapters/stt"
	"github.com/airwave-labs/stationd/pkg/audiofile"
	"github.com/airwave-labs/stationd/pkg/errorsx"
	"github.com/airwave-labs/stationd/pkg/logging"
)

var _ stt.Transcriber = (*STT)(nil)

type STTConfig struct {
	APIKey   string
	Model    string
	Language string
}

type STT struct {
	cfg    STTConfig
	rest   *api.Client
	logger *slog.Logger
}

func NewSTT(cfg STTConfig, logger *slog.Logger) *STT {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	c := client.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &STT{
		cfg:    cfg,
		rest:   api.New(c),
		logger: logging.NewComponentLogger(logger, "deepgram_stt"),
	}
}

func (s *STT) Name() string { return "deepgram_stt" }

// Transcribe uploads the utterance as a WAV and returns the transcript of
// the first channel's best alternative.
func (s *STT) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	wav, err := audiofile.EncodeBytes(audiofile.Float32ToInt16(samples), sampleRate)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonSTTTranscribe)
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       s.cfg.Model,
		Language:    s.cfg.Language,
		SmartFormat: true,
	}
	res, err := s.rest.FromStream(ctx, bytes.NewReader(wav), options)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonSTTTranscribe)
	}

	text := ""
	if res != nil && res.Results != nil && len(res.Results.Channels) > 0 {
		alts := res.Results.Channels[0].Alternatives
		if len(alts) > 0 {
			text = strings.TrimSpace(alts[0].Transcript)
		}
	}
	s.logger.Info("transcription", "text", text)
	return text, nil
}
